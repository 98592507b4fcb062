package repo

import (
	"context"

	"github.com/wgdashboard/wg_dashboard/internal/models"
)

func (r *GormRepo) ListPeers(ctx context.Context) ([]models.Peer, error) {
	var items []models.Peer
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListPeersByOwner(ctx context.Context, ownerID uint) ([]models.Peer, error) {
	var items []models.Peer
	if err := r.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) FindPeerByID(ctx context.Context, id uint) (*models.Peer, error) {
	var p models.Peer
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *GormRepo) CountPeersByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Peer{}).Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormRepo) PublicKeyTaken(ctx context.Context, key string, exceptID uint) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Peer{}).
		Where("public_key = ? AND id <> ?", key, exceptID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) CreatePeer(ctx context.Context, p *models.Peer) error {
	return translate(r.DB.WithContext(ctx).Create(p).Error)
}

func (r *GormRepo) SavePeer(ctx context.Context, p *models.Peer) error {
	return translate(r.DB.WithContext(ctx).Save(p).Error)
}

func (r *GormRepo) DeletePeer(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Peer{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
