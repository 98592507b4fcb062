package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wgdashboard/wg_dashboard/internal/authz"
	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/logging"
	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
)

const MaxPeersPerOwner = 5

type PeerService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

type PeerRequest struct {
	ID                uint    `json:"id"`
	PublicKey         string  `json:"publicKey"`
	AllowedIPs        string  `json:"allowedIPs"`
	DeviceDescription *string `json:"deviceDescription"`
	DeviceType        *string `json:"deviceType"`
	OwnerID           uint    `json:"ownerId"`
}

func (r PeerRequest) validate() error {
	if r.PublicKey == "" {
		return fmt.Errorf("%w: public key is required", ErrBadRequest)
	}
	if r.AllowedIPs == "" {
		return fmt.Errorf("%w: allowed IPs are required", ErrBadRequest)
	}
	if !models.IsValidDeviceType(r.DeviceType) {
		return fmt.Errorf("%w: device type is not valid", ErrBadRequest)
	}
	return nil
}

func (s *PeerService) profiles(ctx context.Context, peers []models.Peer) ([]models.PeerProfile, error) {
	owners := make(map[uint]*models.Account)
	out := make([]models.PeerProfile, 0, len(peers))
	for i := range peers {
		p := &peers[i]
		owner, ok := owners[p.OwnerID]
		if !ok {
			acc, err := s.Repo.FindAccountByID(ctx, p.OwnerID)
			if err != nil {
				return nil, fmt.Errorf("%w: owner of peer %d: %v", ErrInternal, p.ID, err)
			}
			owner = acc
			owners[p.OwnerID] = acc
		}
		out = append(out, models.NewPeerProfile(p, owner))
	}
	return out, nil
}

func (s *PeerService) List(ctx context.Context) ([]models.PeerProfile, error) {
	peers, err := s.Repo.ListPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list peers: %v", ErrInternal, err)
	}
	return s.profiles(ctx, peers)
}

// find loads peer id and checks that actor may see it.
func (s *PeerService) find(ctx context.Context, id uint, actor authz.Actor) (*models.Peer, error) {
	p, err := s.Repo.FindPeerByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: peer %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !actor.CanAccess(p.OwnerID) {
		return nil, fmt.Errorf("%w: peer %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *PeerService) Get(ctx context.Context, id uint, actor authz.Actor) (*models.PeerProfile, error) {
	p, err := s.find(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	out, err := s.profiles(ctx, []models.Peer{*p})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *PeerService) ListByOwner(ctx context.Context, ownerID uint, actor authz.Actor) ([]models.PeerProfile, error) {
	if !actor.CanAccess(ownerID) {
		return nil, fmt.Errorf("%w: peers of account %d", ErrNotFound, ownerID)
	}
	peers, err := s.Repo.ListPeersByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("%w: peers of account %d", ErrNotFound, ownerID)
	}
	return s.profiles(ctx, peers)
}

func (s *PeerService) ListByOwnerUsername(ctx context.Context, username string, actor authz.Actor) ([]models.PeerProfile, error) {
	owner, err := s.Repo.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: peers of %q", ErrNotFound, username)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return s.ListByOwner(ctx, owner.ID, actor)
}

func (s *PeerService) Add(ctx context.Context, req PeerRequest, actor authz.Actor) (*models.PeerProfile, error) {
	l := logging.FromContext(ctx).With("svc", "peers.add", "owner_id", req.OwnerID, "actor_id", actor.ID)

	if !actor.CanAccess(req.OwnerID) {
		l.Warn("add_failed", "status", 400, "reason", "not authorized")
		return nil, fmt.Errorf("%w: cannot add peers for account %d", ErrBadRequest, req.OwnerID)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.OwnerID == 0 {
		return nil, fmt.Errorf("%w: owner id is not valid", ErrBadRequest)
	}

	taken, err := s.Repo.PublicKeyTaken(ctx, req.PublicKey, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if taken {
		return nil, fmt.Errorf("%w: public key already exists", ErrBadRequest)
	}

	owner, err := s.Repo.FindAccountByID(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: owner %d does not exist", ErrBadRequest, req.OwnerID)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	count, err := s.Repo.CountPeersByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if count >= MaxPeersPerOwner {
		return nil, fmt.Errorf("%w: too many peers attached to account %d", ErrBadRequest, req.OwnerID)
	}

	p := &models.Peer{
		PublicKey:         req.PublicKey,
		AllowedIPs:        req.AllowedIPs,
		DeviceDescription: req.DeviceDescription,
		DeviceType:        req.DeviceType,
		OwnerID:           req.OwnerID,
	}
	if err := s.Repo.CreatePeer(ctx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: public key already exists", ErrBadRequest)
		}
		l.Error("add_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: create peer: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.PeerCreated, p.OwnerID, map[string]any{"peer_id": p.ID}))
	l.Info("add_successful", "peer_id", p.ID)
	profile := models.NewPeerProfile(p, owner)
	return &profile, nil
}

// Update changes key, allowed IPs and device fields of peer id. Ownership
// never moves.
func (s *PeerService) Update(ctx context.Context, id uint, req PeerRequest, actor authz.Actor) error {
	l := logging.FromContext(ctx).With("svc", "peers.update", "peer_id", id, "actor_id", actor.ID)

	if req.ID != id {
		return fmt.Errorf("%w: id in path and body differ", ErrBadRequest)
	}
	if err := req.validate(); err != nil {
		return err
	}

	p, err := s.find(ctx, id, actor)
	if err != nil {
		return err
	}

	taken, err := s.Repo.PublicKeyTaken(ctx, req.PublicKey, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if taken {
		return fmt.Errorf("%w: public key already exists", ErrBadRequest)
	}

	p.PublicKey = req.PublicKey
	p.AllowedIPs = req.AllowedIPs
	p.DeviceDescription = req.DeviceDescription
	p.DeviceType = req.DeviceType
	if err := s.Repo.SavePeer(ctx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return fmt.Errorf("%w: public key already exists", ErrBadRequest)
		}
		l.Error("update_failed", "status", 500, "error", err)
		return fmt.Errorf("%w: save peer: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.PeerUpdated, p.OwnerID, map[string]any{"peer_id": p.ID}))
	l.Info("update_successful")
	return nil
}

func (s *PeerService) Delete(ctx context.Context, id uint, actor authz.Actor) error {
	l := logging.FromContext(ctx).With("svc", "peers.delete", "peer_id", id, "actor_id", actor.ID)

	p, err := s.find(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.Repo.DeletePeer(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: peer %d", ErrNotFound, id)
		}
		l.Error("delete_failed", "status", 500, "error", err)
		return fmt.Errorf("%w: delete peer: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.PeerDeleted, p.OwnerID, map[string]any{"peer_id": id}))
	l.Info("delete_successful")
	return nil
}
