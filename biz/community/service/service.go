// Package service implements communities, memberships and join flows.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/biz/community/data/repository"
	"github.com/sohan284/social-media-go/biz/community/structs"
	"github.com/sohan284/social-media-go/internal/event"
	"github.com/sohan284/social-media-go/internal/slug"
)

var (
	ErrCommunityNotFound = errors.New("community not found")
	ErrRequestNotFound   = errors.New("join request not found")
	ErrNotMember         = errors.New("not a member")
	ErrAlreadyMember     = errors.New("already a member")
	ErrAlreadyRequested  = errors.New("join request already pending")
	ErrForbidden         = errors.New("insufficient community role")
	ErrOwnerCannotLeave  = errors.New("owner cannot leave the community")
)

type Service struct {
	repo   repository.CommunityRepository
	bus    *event.Bus
	logger *logger.Logger
}

func NewService(repo repository.CommunityRepository, bus *event.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: log,
	}
}

// Create makes the caller the owner; the membership and count start
// consistent in one transaction.
func (s *Service) Create(ctx context.Context, creatorID string, req *structs.CreateCommunityRequest) (*structs.Community, error) {
	communitySlug, err := slug.Unique(ctx, req.Name, "", s.repo.SlugTaken)
	if err != nil {
		return nil, err
	}

	privacy := req.Privacy
	if privacy == "" {
		privacy = structs.PrivacyPublic
	}

	now := time.Now()
	community := &structs.Community{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Slug:        communitySlug,
		Description: req.Description,
		Avatar:      req.Avatar,
		CoverPhoto:  req.CoverPhoto,
		Privacy:     privacy,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	owner := &structs.Member{
		CommunityID: community.ID,
		UserID:      creatorID,
		Role:        structs.MemberRoleOwner,
		JoinedAt:    now,
	}

	if err := s.repo.Create(ctx, community, owner); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Community created", "community_id", community.ID, "slug", communitySlug)
	return community, nil
}

func (s *Service) Update(ctx context.Context, communityID, callerID string, req *structs.UpdateCommunityRequest) (*structs.Community, error) {
	community, err := s.find(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, communityID, callerID, structs.MemberRoleModerator); err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != community.Name {
		community.Name = *req.Name
		if community.Slug, err = slug.Unique(ctx, community.Name, community.ID, s.repo.SlugTaken); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		community.Description = *req.Description
	}
	if req.Avatar != nil {
		community.Avatar = *req.Avatar
	}
	if req.CoverPhoto != nil {
		community.CoverPhoto = *req.CoverPhoto
	}
	if req.Privacy != nil {
		community.Privacy = *req.Privacy
	}

	if err := s.repo.Update(ctx, community); err != nil {
		return nil, err
	}
	return community, nil
}

func (s *Service) Get(ctx context.Context, communityID string) (*structs.Community, error) {
	return s.find(ctx, communityID)
}

func (s *Service) GetBySlug(ctx context.Context, communitySlug string) (*structs.Community, error) {
	community, err := s.repo.FindBySlug(ctx, communitySlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommunityNotFound
	}
	return community, err
}

func (s *Service) List(ctx context.Context, query string, before time.Time, limit int) ([]*structs.Community, error) {
	if query != "" {
		return s.repo.Search(ctx, query, before, limit)
	}
	return s.repo.List(ctx, before, limit)
}

// ListPopular ranks by member count.
func (s *Service) ListPopular(ctx context.Context, limit int) ([]*structs.Community, error) {
	return s.repo.ListPopular(ctx, limit)
}

func (s *Service) ListMine(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Community, error) {
	return s.repo.ListByMember(ctx, userID, before, limit)
}

func (s *Service) Delete(ctx context.Context, communityID, callerID string, isAdmin bool) error {
	community, err := s.find(ctx, communityID)
	if err != nil {
		return err
	}
	if community.CreatorID != callerID && !isAdmin {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, communityID); err != nil {
		return err
	}
	s.logger.Info(ctx, "Community deleted", "community_id", communityID, "by", callerID)
	return nil
}

// Join adds the user directly for public communities; private ones get a
// pending request and the owner is notified.
func (s *Service) Join(ctx context.Context, communityID, userID string) (*structs.JoinRequest, error) {
	community, err := s.find(ctx, communityID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindMember(ctx, communityID, userID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if community.Privacy == structs.PrivacyPublic {
		member := &structs.Member{
			CommunityID: communityID,
			UserID:      userID,
			Role:        structs.MemberRoleMember,
			JoinedAt:    time.Now(),
		}
		return nil, s.repo.AddMember(ctx, member)
	}

	if _, err := s.repo.FindPendingRequest(ctx, communityID, userID); err == nil {
		return nil, ErrAlreadyRequested
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	request := &structs.JoinRequest{
		ID:          uuid.New().String(),
		CommunityID: communityID,
		UserID:      userID,
		Status:      structs.RequestPending,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateJoinRequest(ctx, request); err != nil {
		return nil, err
	}

	s.publish(ctx, &event.Event{
		Type:      event.TypeCommunityJoinRequested,
		ActorID:   userID,
		SubjectID: community.CreatorID,
		ObjectID:  communityID,
		Payload:   map[string]any{"request_id": request.ID},
	})
	return request, nil
}

func (s *Service) Leave(ctx context.Context, communityID, userID string) error {
	member, err := s.repo.FindMember(ctx, communityID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	if member.Role == structs.MemberRoleOwner {
		return ErrOwnerCannotLeave
	}

	removed, err := s.repo.RemoveMember(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, communityID string, before time.Time, limit int) ([]*structs.Member, error) {
	if _, err := s.find(ctx, communityID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, communityID, before, limit)
}

// ChangeMemberRole promotes or demotes between member and moderator.
// Only the owner may do this.
func (s *Service) ChangeMemberRole(ctx context.Context, communityID, callerID, targetID string, role structs.MemberRole) error {
	if err := s.requireRole(ctx, communityID, callerID, structs.MemberRoleOwner); err != nil {
		return err
	}

	target, err := s.repo.FindMember(ctx, communityID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	if target.Role == structs.MemberRoleOwner {
		return ErrForbidden
	}
	return s.repo.SetMemberRole(ctx, communityID, targetID, role)
}

// RemoveMember kicks a member out. Moderators cannot remove the owner or
// each other; the owner can remove anyone but themselves.
func (s *Service) RemoveMember(ctx context.Context, communityID, callerID, targetID string) error {
	if callerID == targetID {
		return s.Leave(ctx, communityID, targetID)
	}

	caller, err := s.repo.FindMember(ctx, communityID, callerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}

	target, err := s.repo.FindMember(ctx, communityID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}

	if !outranks(caller.Role, target.Role) {
		return ErrForbidden
	}

	removed, err := s.repo.RemoveMember(ctx, communityID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember
	}
	return nil
}

func (s *Service) ListJoinRequests(ctx context.Context, communityID, callerID string, before time.Time, limit int) ([]*structs.JoinRequest, error) {
	if err := s.requireRole(ctx, communityID, callerID, structs.MemberRoleModerator); err != nil {
		return nil, err
	}
	return s.repo.ListJoinRequests(ctx, communityID, before, limit)
}

// ResolveJoinRequest approves or rejects and notifies the requester.
func (s *Service) ResolveJoinRequest(ctx context.Context, requestID, callerID string, approve bool) (*structs.JoinRequest, error) {
	request, err := s.repo.FindJoinRequest(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if request.Status != structs.RequestPending {
		return nil, ErrRequestNotFound
	}

	if err := s.requireRole(ctx, request.CommunityID, callerID, structs.MemberRoleModerator); err != nil {
		return nil, err
	}

	if err := s.repo.ResolveJoinRequest(ctx, request, approve); err != nil {
		return nil, err
	}

	eventType := event.TypeCommunityJoinRejected
	if approve {
		eventType = event.TypeCommunityJoinApproved
	}
	s.publish(ctx, &event.Event{
		Type:      eventType,
		ActorID:   callerID,
		SubjectID: request.UserID,
		ObjectID:  request.CommunityID,
	})
	return request, nil
}

func (s *Service) find(ctx context.Context, communityID string) (*structs.Community, error) {
	community, err := s.repo.FindByID(ctx, communityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommunityNotFound
	}
	return community, err
}

// requireRole checks the caller holds at least the given community role.
func (s *Service) requireRole(ctx context.Context, communityID, userID string, min structs.MemberRole) error {
	member, err := s.repo.FindMember(ctx, communityID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if rank(member.Role) < rank(min) {
		return ErrForbidden
	}
	return nil
}

func rank(role structs.MemberRole) int {
	switch role {
	case structs.MemberRoleOwner:
		return 3
	case structs.MemberRoleModerator:
		return 2
	case structs.MemberRoleMember:
		return 1
	default:
		return 0
	}
}

func outranks(a, b structs.MemberRole) bool {
	return rank(a) > rank(b)
}

func (s *Service) publish(ctx context.Context, evt *event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn(ctx, "Failed to publish event", "type", evt.Type, "error", err)
	}
}
