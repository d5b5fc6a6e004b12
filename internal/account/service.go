package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deskhub.org/internal/audit"
)

// Service orchestrates account lifecycle operations: creation, updates, soft
// deletion, password resets, and explicit unlocks. Every mutation writes one
// audit entry; invariant checks run before anything is persisted.
type Service struct {
	store    Store
	hasher   Hasher
	sessions SessionPurger
	auditlog audit.Recorder
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the lifecycle service.
func NewService(store Store, hasher Hasher, sessions SessionPurger, auditlog audit.Recorder, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		hasher:   hasher,
		sessions: sessions,
		auditlog: auditlog,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and persists a new account. Creation is strict about
// role/department consistency: a department supplied alongside a
// non-department role is rejected rather than cleared (the update path is
// deliberately more lenient; see Update).
func (s *Service) Create(ctx context.Context, actorID int64, in NewAccount, ip string) (*Account, error) {
	in.Username = strings.TrimSpace(strings.ToLower(in.Username))
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Department = strings.TrimSpace(in.Department)

	var violations []string
	if in.Username == "" {
		violations = append(violations, "username is required")
	}
	if in.Email == "" {
		violations = append(violations, "email is required")
	}
	if !in.Role.Valid() {
		violations = append(violations, "unknown role")
	}
	if in.Role == RoleDepartment && in.Department == "" {
		violations = append(violations, "department is required for department accounts")
	}
	if in.Role != RoleDepartment && in.Role.Valid() && in.Department != "" {
		violations = append(violations, "department must be empty for non-department accounts")
	}
	violations = append(violations, ValidatePassword(in.Password)...)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Department:   in.Department,
		Status:       StatusActive,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, err
	}

	if err := s.appendAudit(ctx, actorID, audit.ActionUserCreated, acc.ID, ip, map[string]any{
		"username":   acc.Username,
		"email":      acc.Email,
		"role":       string(acc.Role),
		"department": acc.Department,
	}); err != nil {
		return nil, err
	}
	return acc, nil
}

// Update applies a partial administrative update. The last active
// super_admin can be neither downgraded nor deactivated. A department set on
// a non-department role is auto-cleared rather than rejected; switching to
// the department role without a department is rejected.
func (s *Service) Update(ctx context.Context, actorID, targetID int64, req UpdateRequest, ip string) (*Account, error) {
	target, err := s.store.Find(ctx, targetID)
	if err != nil {
		return nil, err
	}

	newRole := target.Role
	if req.Role != nil {
		newRole = *req.Role
	}
	newStatus := target.Status
	if req.Status != nil {
		newStatus = *req.Status
	}
	newDept := target.Department
	if req.Department != nil {
		newDept = strings.TrimSpace(*req.Department)
	}

	var violations []string
	if !newRole.Valid() {
		violations = append(violations, "unknown role")
	}
	if newStatus != StatusActive && newStatus != StatusInactive {
		violations = append(violations, "status must be active or inactive")
	}
	if newRole == RoleDepartment && newDept == "" {
		violations = append(violations, "department is required for department accounts")
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	if newRole != RoleDepartment {
		// Leniency carried over from the original system: clear instead of reject.
		newDept = ""
	}

	demoted := target.Role == RoleSuperAdmin && newRole != RoleSuperAdmin
	deactivated := target.Status == StatusActive && newStatus != StatusActive
	if target.Role == RoleSuperAdmin && target.Status == StatusActive && (demoted || deactivated) {
		if err := s.guardLastSuperAdmin(ctx); err != nil {
			return nil, err
		}
	}

	changes := map[string]any{}
	fields := Fields{}
	if req.Username != nil {
		username := strings.TrimSpace(strings.ToLower(*req.Username))
		if username != target.Username {
			fields.Username = &username
			changes["username"] = map[string]any{"from": target.Username, "to": username}
		}
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != target.Email {
			fields.Email = &email
			changes["email"] = map[string]any{"from": target.Email, "to": email}
		}
	}
	if newRole != target.Role {
		fields.Role = &newRole
		changes["role"] = map[string]any{"from": string(target.Role), "to": string(newRole)}
	}
	if newDept != target.Department {
		fields.Department = &newDept
		changes["department"] = map[string]any{"from": target.Department, "to": newDept}
	}
	if newStatus != target.Status {
		fields.Status = &newStatus
		changes["status"] = map[string]any{"from": string(target.Status), "to": string(newStatus)}
	}

	if len(changes) > 0 {
		if err := s.store.UpdateFields(ctx, targetID, fields); err != nil {
			return nil, err
		}
	}

	purged := 0
	if deactivated {
		// Force immediate logout; expiry alone would leave a live session
		// for a deactivated account.
		purged, err = s.sessions.PurgeAccount(ctx, targetID)
		if err != nil {
			return nil, fmt.Errorf("purge sessions: %w", err)
		}
	}

	if err := s.appendAudit(ctx, actorID, audit.ActionUserUpdated, targetID, ip, map[string]any{
		"changes":         changes,
		"sessions_purged": purged,
	}); err != nil {
		return nil, err
	}

	return s.store.Find(ctx, targetID)
}

// Delete soft-deletes the target account, purges its sessions, and records a
// snapshot of the removed identity. Self-deletion is always rejected, as is
// removing the last active super_admin.
func (s *Service) Delete(ctx context.Context, actorID, targetID int64, ip string) error {
	if actorID == targetID {
		return &InvariantViolation{Reason: "accounts cannot delete themselves"}
	}
	target, err := s.store.Find(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Role == RoleSuperAdmin && target.Status == StatusActive {
		if err := s.guardLastSuperAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.store.SoftDelete(ctx, targetID, s.now().UTC()); err != nil {
		return err
	}
	purged, err := s.sessions.PurgeAccount(ctx, targetID)
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}

	return s.appendAudit(ctx, actorID, audit.ActionUserDeleted, targetID, ip, map[string]any{
		"username":        target.Username,
		"email":           target.Email,
		"role":            string(target.Role),
		"sessions_purged": purged,
	})
}

// ResetPassword sets a new credential without knowledge of the current one
// (administrative reset). The failed-login counter is deliberately left
// untouched; unlocking is a separate, audited operation.
func (s *Service) ResetPassword(ctx context.Context, actorID, targetID int64, newPassword, ip string) error {
	target, err := s.store.Find(ctx, targetID)
	if err != nil {
		return err
	}
	if violations := ValidatePassword(newPassword); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	changedAt := s.now().UTC()
	if err := s.store.UpdateFields(ctx, targetID, Fields{
		PasswordHash:      &hash,
		PasswordChangedAt: &changedAt,
	}); err != nil {
		return err
	}

	return s.appendAudit(ctx, actorID, audit.ActionPasswordReset, targetID, ip, map[string]any{
		"username": target.Username,
	})
}

// ChangePassword is the self-service path: the caller must prove knowledge
// of the current credential.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, current, newPassword, ip string) error {
	acc, err := s.store.Find(ctx, accountID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Compare(ctx, acc.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return &ValidationError{Violations: []string{"current password is incorrect"}}
	}
	if violations := ValidatePassword(newPassword); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	changedAt := s.now().UTC()
	if err := s.store.UpdateFields(ctx, accountID, Fields{
		PasswordHash:      &hash,
		PasswordChangedAt: &changedAt,
	}); err != nil {
		return err
	}

	return s.appendAudit(ctx, accountID, audit.ActionPasswordChanged, accountID, ip, nil)
}

// Unlock clears the failed-login counter. Only this operation and a
// successful login reset the counter.
func (s *Service) Unlock(ctx context.Context, actorID, targetID int64, ip string) error {
	target, err := s.store.Find(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.store.ResetFailedLogins(ctx, targetID, false); err != nil {
		return err
	}
	return s.appendAudit(ctx, actorID, audit.ActionUserUnlocked, targetID, ip, map[string]any{
		"username":      target.Username,
		"failed_logins": target.FailedLogins,
	})
}

func (s *Service) guardLastSuperAdmin(ctx context.Context) error {
	n, err := s.store.CountActive(ctx, RoleSuperAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return &InvariantViolation{Reason: "at least one active super_admin must remain"}
	}
	return nil
}

func (s *Service) appendAudit(ctx context.Context, actorID int64, action string, targetID int64, ip string, details map[string]any) error {
	return s.auditlog.Append(ctx, &audit.Entry{
		ActorID:    actorID,
		Action:     action,
		TargetType: "user",
		TargetID:   &targetID,
		Details:    details,
		IP:         ip,
		CreatedAt:  s.now().UTC(),
	})
}
