package localauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/key"
)

// Login authenticates the given factor. A PIN login drives the bounded
// challenge retry loop; a biometric login prompts once and unwraps the
// master key with the device key.
func (a *Authenticator) Login(ctx context.Context, factor FactorType) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch factor {
	case FactorPIN:
		return a.loginPINLocked(ctx)
	case FactorBiometric:
		return a.loginBiometricLocked(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFactor, factor)
	}
}

func (a *Authenticator) loginPINLocked(ctx context.Context) error {
	wrapKey, st, err := a.proveSecretLocked(ctx, ReasonLogin)
	if err != nil {
		return err
	}
	defer wrapKey.Wipe()

	master, err := unwrapMaster(st, wrapKey)
	if err != nil {
		return err
	}
	defer master.Wipe()

	if err := a.setMasterLocked(master); err != nil {
		return err
	}
	a.logger.Info("local factor authenticated", "id", a.id, "factor", FactorPIN)
	return nil
}

func (a *Authenticator) loginBiometricLocked(ctx context.Context) error {
	st, err := a.loadState(FactorBiometric)
	if err != nil {
		return err
	}
	if !st.Enabled {
		return fmt.Errorf("%w: %s", ErrNotEnabled, FactorBiometric)
	}

	resp, err := a.presenter.Present(ctx, Challenge{Reason: ReasonLogin, Factor: FactorBiometric, Attempt: 1})
	if err != nil {
		return fmt.Errorf("presenting biometric challenge: %w", err)
	}
	resp.destroy()
	if resp.Canceled {
		return ErrCanceled
	}

	master, err := a.openBiometricMasterLocked(st)
	if err != nil {
		return err
	}
	defer master.Wipe()

	if err := a.setMasterLocked(master); err != nil {
		return err
	}
	a.logger.Info("local factor authenticated", "id", a.id, "factor", FactorBiometric)
	return nil
}

// openBiometricMasterLocked fetches the device key and unwraps the master.
// A permanently invalidated device key force-disables the factor so the
// caller can prompt re-enrollment.
func (a *Authenticator) openBiometricMasterLocked(st *factorState) (key.Key, error) {
	raw, err := a.deviceKeys.Key(a.id)
	if errors.Is(err, ErrKeyInvalidated) {
		a.forceDisableBiometricLocked()
		return nil, fmt.Errorf("device key for %s: %w", a.id, ErrFactorChanged)
	}
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(raw)

	deviceKey, err := key.NewDerivedKey("device/"+a.id, raw)
	if err != nil {
		return nil, err
	}
	defer deviceKey.Wipe()

	return unwrapMaster(st, deviceKey)
}

// forceDisableBiometricLocked removes the biometric factor's state and
// device key after an unrecoverable platform condition.
func (a *Authenticator) forceDisableBiometricLocked() {
	if err := a.deleteState(FactorBiometric); err != nil {
		a.logger.Error("removing invalidated biometric state", "id", a.id, "error", err)
	}
	if err := a.deviceKeys.Delete(a.id); err != nil {
		a.logger.Error("removing invalidated device key", "id", a.id, "error", err)
	}
	a.logger.Warn("biometric factor force-disabled", "id", a.id)
}

// proveSecretLocked drives the bounded challenge loop against the PIN
// commitment. Each mismatch increments the persisted failure counter and
// re-presents the challenge with the next attempt number; reaching the
// policy bound raises ErrLockout. On a match the counter resets per policy
// and the derived wrap key is returned. The caller must Wipe it.
func (a *Authenticator) proveSecretLocked(ctx context.Context, reason Reason) (key.Key, *factorState, error) {
	st, err := a.loadState(FactorPIN)
	if err != nil {
		return nil, nil, err
	}
	if !st.Enabled {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotEnabled, FactorPIN)
	}

	var prevErr error
	for {
		resp, err := a.presenter.Present(ctx, Challenge{
			Reason:  reason,
			Factor:  FactorPIN,
			Attempt: st.Failures + 1,
			PrevErr: prevErr,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("presenting challenge: %w", err)
		}
		if resp.Canceled {
			resp.destroy()
			return nil, nil, ErrCanceled
		}
		if resp.Secret == nil {
			resp.destroy()
			return nil, nil, fmt.Errorf("challenge response carried no secret")
		}

		pin, err := resp.Secret.Bytes()
		resp.destroy()
		if err != nil {
			return nil, nil, err
		}
		wrapKey, commitment, err := deriveWrapKey(a.id, pin, st.Salt, st.KDF)
		util.WipeBytes(pin)
		if err != nil {
			return nil, nil, err
		}

		if subtle.ConstantTimeCompare(commitment, st.Commitment) == 1 {
			if a.policy.ResetOnSuccess && st.Failures != 0 {
				st.Failures = 0
				if err := a.saveState(FactorPIN, st); err != nil {
					wrapKey.Wipe()
					return nil, nil, err
				}
			}
			return wrapKey, st, nil
		}
		wrapKey.Wipe()

		st.Failures++
		if err := a.saveState(FactorPIN, st); err != nil {
			return nil, nil, err
		}
		if st.Failures >= a.policy.MaxAttempts {
			if a.policy.ResetOnLockout {
				st.Failures = 0
				if err := a.saveState(FactorPIN, st); err != nil {
					return nil, nil, err
				}
			}
			a.logger.Warn("pin lockout", "id", a.id, "maxAttempts", a.policy.MaxAttempts)
			return nil, nil, ErrLockout
		}
		prevErr = ErrMismatch
	}
}

func unwrapMaster(st *factorState, unlock key.Key) (key.Key, error) {
	if len(st.WrappedMaster) == 0 {
		return nil, fmt.Errorf("factor state has no wrapped master key")
	}
	ek, err := key.UnmarshalEncryptedKey(st.WrappedMaster)
	if err != nil {
		return nil, fmt.Errorf("decoding wrapped master key: %w", err)
	}
	master, err := key.UnwrapKey(ek, unlock)
	if err != nil {
		return nil, fmt.Errorf("unwrapping master key: %w", err)
	}
	return master, nil
}
