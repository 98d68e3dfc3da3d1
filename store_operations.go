package storeauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/storeauth/provider"
	"github.com/sirupsen/logrus"
)

var errNoUser = errors.New("provider returned no user")

// operation runs fn with a context that also ends on Dispose and converts
// panics into a generic failure. Operations never panic across the boundary.
func (s *Store) operation(ctx context.Context, name string, fn func(ctx context.Context) Result) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.isDisposed() {
		return failure(ErrDisposed)
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.Inc(MetricOperationPanic)
			s.entry(ctx).WithFields(logrus.Fields{
				"operation": name,
				"panic":     fmt.Sprint(r),
			}).Error("operation panicked")
			res = Result{Error: &OperationError{
				Message: MessageGeneric,
				Err:     fmt.Errorf("%s: panic: %v", name, r),
			}}
		}
	}()

	return fn(opCtx)
}

func (s *Store) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if s.cfg.Auth.OperationTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Auth.OperationTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Store) isDisposed() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.disposed
}

func failure(err error) Result {
	return Result{Error: normalizeError(err)}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an unconfirmed account. Role, name, currency, phone and
// country are embedded as identity attributes. Session state is not touched.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) Result {
	return s.operation(ctx, AuditSignUp, func(ctx context.Context) Result {
		email := normalizeEmail(in.Email)
		md := in.metadata()
		_, err := s.provider.SignUp(ctx, provider.SignUpParams{
			Email:    email,
			Password: in.Password,
			Metadata: md,
		})

		role, _ := md[AttrRole].(string)
		s.recordOperation(ctx, AuditSignUp, MetricSignUpSuccess, MetricSignUpFailure, AuditEvent{
			Email: email,
			Role:  role,
		}, err)
		if err != nil {
			return failure(err)
		}
		return Result{Success: true}
	})
}

// SignIn authenticates with email and password, resolves the profile and
// applies it before returning. The returned role is the resolved one.
func (s *Store) SignIn(ctx context.Context, email, password string) Result {
	return s.operation(ctx, AuditSignIn, func(ctx context.Context) Result {
		email = normalizeEmail(email)
		user, err := s.provider.SignInWithPassword(ctx, email, password)
		if err == nil && user == nil {
			err = errNoUser
		}
		if err != nil {
			s.recordOperation(ctx, AuditSignIn, MetricSignInSuccess, MetricSignInFailure, AuditEvent{Email: email}, err)
			return failure(err)
		}

		role, err := s.establish(ctx, *user)
		s.recordOperation(ctx, AuditSignIn, MetricSignInSuccess, MetricSignInFailure, AuditEvent{
			UserID: user.ID,
			Email:  user.Email,
			Role:   string(role),
		}, err)
		if err != nil {
			return failure(err)
		}
		return Result{Success: true, Role: role}
	})
}

// SignOut signs out at the provider and clears the session. The session is
// cleared even when the provider call fails. Role is the role that was in
// effect before clearing.
func (s *Store) SignOut(ctx context.Context) Result {
	return s.operation(ctx, AuditSignOut, func(ctx context.Context) Result {
		before := s.Snapshot()
		err := s.provider.SignOut(ctx)
		s.clear(ctx, "sign_out")

		s.metrics.Inc(MetricSignOut)
		ev := AuditEvent{
			EventType: AuditSignOut,
			Role:      string(before.AuthRole),
			Success:   err == nil,
		}
		if before.CurrentAuthUser != nil {
			ev.UserID = before.CurrentAuthUser.ID
			ev.Email = before.CurrentAuthUser.Email
		}
		if err != nil {
			s.metrics.Inc(MetricSignOutProviderFailure)
			ev.Error = err.Error()
			s.entry(ctx).WithError(err).Warn("provider sign-out failed; local session cleared")
		}
		s.emitAudit(ctx, ev)

		if err != nil {
			return Result{Role: before.AuthRole, Error: normalizeError(err)}
		}
		return Result{Success: true, Role: before.AuthRole}
	})
}

// ResetPassword sends a recovery code to email.
func (s *Store) ResetPassword(ctx context.Context, email string) Result {
	return s.operation(ctx, AuditPasswordResetRequest, func(ctx context.Context) Result {
		email = normalizeEmail(email)
		err := s.provider.SendPasswordResetCode(ctx, email, s.cfg.Auth.PasswordResetRedirectURL)

		s.metrics.Inc(MetricPasswordResetRequest)
		ev := AuditEvent{EventType: AuditPasswordResetRequest, Email: email, Success: err == nil}
		if err != nil {
			ev.Error = err.Error()
		}
		s.emitAudit(ctx, ev)

		if err != nil {
			return failure(err)
		}
		return Result{Success: true}
	})
}

// ConfirmPasswordReset verifies a recovery code and sets newPassword on the
// session the verification established.
func (s *Store) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) Result {
	return s.operation(ctx, AuditPasswordResetConfirm, func(ctx context.Context) Result {
		email = normalizeEmail(email)
		user, err := s.provider.VerifyOneTimeCode(ctx, provider.VerifyParams{
			Email:   email,
			Code:    strings.TrimSpace(code),
			Purpose: provider.OTPRecovery,
		})
		if err == nil {
			err = s.provider.UpdatePassword(ctx, newPassword)
		}

		ev := AuditEvent{Email: email}
		if user != nil {
			ev.UserID = user.ID
		}
		s.recordOperation(ctx, AuditPasswordResetConfirm, MetricPasswordResetConfirmSuccess, MetricPasswordResetConfirmFailure, ev, err)
		if err != nil {
			return failure(err)
		}
		return Result{Success: true}
	})
}

// ConfirmSignUp verifies a signup code. The provider establishes a session
// on success; its identity is resolved and applied before returning.
func (s *Store) ConfirmSignUp(ctx context.Context, email, code string) Result {
	return s.operation(ctx, AuditSignUpConfirm, func(ctx context.Context) Result {
		email = normalizeEmail(email)
		user, err := s.provider.VerifyOneTimeCode(ctx, provider.VerifyParams{
			Email:   email,
			Code:    strings.TrimSpace(code),
			Purpose: provider.OTPSignup,
		})
		if err == nil && user == nil {
			err = errNoUser
		}
		if err != nil {
			s.recordOperation(ctx, AuditSignUpConfirm, MetricSignUpConfirmSuccess, MetricSignUpConfirmFailure, AuditEvent{Email: email}, err)
			return failure(err)
		}

		role, err := s.establish(ctx, *user)
		s.recordOperation(ctx, AuditSignUpConfirm, MetricSignUpConfirmSuccess, MetricSignUpConfirmFailure, AuditEvent{
			UserID: user.ID,
			Email:  user.Email,
			Role:   string(role),
		}, err)
		if err != nil {
			return failure(err)
		}
		return Result{Success: true, Role: role}
	})
}

// ResendSignUpCode sends a fresh signup confirmation code.
func (s *Store) ResendSignUpCode(ctx context.Context, email string) Result {
	return s.operation(ctx, AuditCodeResend, func(ctx context.Context) Result {
		email = normalizeEmail(email)
		err := s.provider.ResendCode(ctx, email, provider.OTPSignup)

		s.metrics.Inc(MetricCodeResend)
		ev := AuditEvent{EventType: AuditCodeResend, Email: email, Success: err == nil}
		if err != nil {
			ev.Error = err.Error()
		}
		s.emitAudit(ctx, ev)

		if err != nil {
			return failure(err)
		}
		return Result{Success: true}
	})
}

// establish adopts an identity returned by an operation and waits for a
// fresh profile resolution, sharing it with the event loop when both race.
func (s *Store) establish(ctx context.Context, u provider.User) (Role, error) {
	user := authUserFrom(u)
	epoch, ok := s.adoptIdentity(user)
	if !ok {
		return "", ErrDisposed
	}

	select {
	case r := <-s.resolveShared(epoch, user):
		res := r.Val.(resolution)
		return res.profile.Role, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Store) recordOperation(ctx context.Context, eventType string, okMetric, failMetric MetricID, ev AuditEvent, err error) {
	ev.EventType = eventType
	ev.Success = err == nil
	log := s.entry(ctx).WithField("operation", eventType)
	if ev.UserID != "" {
		log = log.WithField("user_id", ev.UserID)
	}
	if err != nil {
		s.metrics.Inc(failMetric)
		ev.Error = err.Error()
		log.WithError(err).WithField("code", string(provider.CodeOf(err))).Info("auth operation rejected")
	} else {
		s.metrics.Inc(okMetric)
		log.Debug("auth operation succeeded")
	}
	s.emitAudit(ctx, ev)
}
