package localauth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/key"
)

// Enable turns a factor on. Enabling an already-enabled factor is an
// idempotent success. Enabling the biometric factor requires the PIN
// factor to be enabled first and re-proves it.
func (a *Authenticator) Enable(ctx context.Context, factor FactorType) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch factor {
	case FactorPIN:
		return a.enablePINLocked(ctx)
	case FactorBiometric:
		return a.enableBiometricLocked(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFactor, factor)
	}
}

func (a *Authenticator) enablePINLocked(ctx context.Context) error {
	st, err := a.loadState(FactorPIN)
	if err != nil {
		return err
	}
	if st.Enabled {
		return nil
	}

	resp, err := a.presenter.Present(ctx, Challenge{Reason: ReasonSetPin, Factor: FactorPIN, Attempt: 1})
	if err != nil {
		return fmt.Errorf("presenting challenge: %w", err)
	}
	if resp.Canceled {
		resp.destroy()
		return ErrCanceled
	}
	if resp.NewSecret == nil {
		resp.destroy()
		return fmt.Errorf("challenge response carried no new secret")
	}
	pin, err := resp.NewSecret.Bytes()
	resp.destroy()
	if err != nil {
		return err
	}
	defer util.WipeBytes(pin)

	salt, err := util.RandomBytes(16)
	if err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	wrapKey, commitment, err := deriveWrapKey(a.id, pin, salt, a.kdfParams)
	if err != nil {
		return err
	}
	defer wrapKey.Wipe()

	master, err := key.NewSymmetricKey()
	if err != nil {
		return fmt.Errorf("generating master key: %w", err)
	}
	defer master.Wipe()

	wrapped, err := master.EncryptKey(wrapKey)
	if err != nil {
		return fmt.Errorf("wrapping master key: %w", err)
	}
	wrappedJSON, err := json.Marshal(wrapped)
	if err != nil {
		return fmt.Errorf("encoding wrapped master key: %w", err)
	}

	newState := &factorState{
		Enabled:       true,
		Salt:          salt,
		KDF:           a.kdfParams,
		Commitment:    commitment,
		WrappedMaster: wrappedJSON,
	}
	if err := a.saveState(FactorPIN, newState); err != nil {
		return err
	}
	a.logger.Info("factor enabled", "id", a.id, "factor", FactorPIN)
	return nil
}

func (a *Authenticator) enableBiometricLocked(ctx context.Context) error {
	bst, err := a.loadState(FactorBiometric)
	if err != nil {
		return err
	}
	if bst.Enabled {
		return nil
	}
	pst, err := a.loadState(FactorPIN)
	if err != nil {
		return err
	}
	if !pst.Enabled {
		return ErrPinRequired
	}

	// Re-prove the PIN; it is the backup unwrap authenticator for the
	// biometric key material.
	wrapKey, pst, err := a.proveSecretLocked(ctx, ReasonLogin)
	if err != nil {
		return err
	}
	defer wrapKey.Wipe()

	master, err := unwrapMaster(pst, wrapKey)
	if err != nil {
		return err
	}
	defer master.Wipe()

	rawDevice, err := a.deviceKeys.Generate(a.id)
	if err != nil {
		return fmt.Errorf("generating device key: %w", err)
	}
	deviceKey, err := key.NewDerivedKey("device/"+a.id, rawDevice)
	util.WipeBytes(rawDevice)
	if err != nil {
		return err
	}
	defer deviceKey.Wipe()

	wrappedMaster, err := master.EncryptKey(deviceKey)
	if err != nil {
		return fmt.Errorf("wrapping master under device key: %w", err)
	}
	wrappedMasterJSON, err := json.Marshal(wrappedMaster)
	if err != nil {
		return fmt.Errorf("encoding wrapped master key: %w", err)
	}

	// The device key wrapped under the PIN key lets a PIN change re-wrap
	// biometric key material without re-enrollment.
	backup, err := deviceKey.EncryptKey(wrapKey)
	if err != nil {
		return fmt.Errorf("wrapping device key under pin key: %w", err)
	}
	backupJSON, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("encoding backup key: %w", err)
	}

	newState := &factorState{
		Enabled:       true,
		WrappedMaster: wrappedMasterJSON,
		BackupWrapped: backupJSON,
	}
	if err := a.saveState(FactorBiometric, newState); err != nil {
		return err
	}

	// The PIN proof above is a full authentication.
	if err := a.setMasterLocked(master); err != nil {
		return err
	}
	a.logger.Info("factor enabled", "id", a.id, "factor", FactorBiometric)
	return nil
}

// Disable turns a factor off after re-proving it. Disabling the PIN factor
// while the biometric factor is enabled fails with ErrDependentFactor.
// Disabling implicitly authenticates first; the PIN factor's removal also
// drops the unlocked master key since nothing can gate it anymore.
func (a *Authenticator) Disable(ctx context.Context, factor FactorType) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch factor {
	case FactorPIN:
		return a.disablePINLocked(ctx)
	case FactorBiometric:
		return a.disableBiometricLocked(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFactor, factor)
	}
}

func (a *Authenticator) disablePINLocked(ctx context.Context) error {
	st, err := a.loadState(FactorPIN)
	if err != nil {
		return err
	}
	if !st.Enabled {
		return fmt.Errorf("%w: %s", ErrNotEnabled, FactorPIN)
	}
	bst, err := a.loadState(FactorBiometric)
	if err != nil {
		return err
	}
	if bst.Enabled {
		return ErrDependentFactor
	}

	wrapKey, _, err := a.proveSecretLocked(ctx, ReasonLogin)
	if err != nil {
		return err
	}
	wrapKey.Wipe()

	if err := a.deleteState(FactorPIN); err != nil {
		return fmt.Errorf("removing %s state: %w", FactorPIN, err)
	}
	a.clearMasterLocked()
	a.logger.Info("factor disabled", "id", a.id, "factor", FactorPIN)
	return nil
}

func (a *Authenticator) disableBiometricLocked(ctx context.Context) error {
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

	if err := a.deleteState(FactorBiometric); err != nil {
		master.Wipe()
		return fmt.Errorf("removing %s state: %w", FactorBiometric, err)
	}
	if err := a.deviceKeys.Delete(a.id); err != nil {
		a.logger.Error("removing device key", "id", a.id, "error", err)
	}

	// The device-key proof was a full authentication; the PIN factor still
	// gates the master key, so authenticated state is kept.
	err = a.setMasterLocked(master)
	master.Wipe()
	if err != nil {
		return err
	}
	a.logger.Info("factor disabled", "id", a.id, "factor", FactorBiometric)
	return nil
}

// Logout drops the in-memory master key and reverts the instance to
// Enabled-Unauthenticated. With forgetDevice set, the biometric factor's
// stored key material is removed as well, so the device must re-enroll
// before biometric login works again. The PIN factor is never touched.
func (a *Authenticator) Logout(forgetDevice bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clearMasterLocked()
	if !forgetDevice {
		a.logger.Info("logged out", "id", a.id)
		return nil
	}

	st, err := a.loadState(FactorBiometric)
	if err != nil {
		return err
	}
	if st.Enabled {
		if err := a.deleteState(FactorBiometric); err != nil {
			return fmt.Errorf("removing %s state: %w", FactorBiometric, err)
		}
		if err := a.deviceKeys.Delete(a.id); err != nil {
			a.logger.Error("removing device key", "id", a.id, "error", err)
		}
	}
	a.logger.Info("logged out", "id", a.id, "forget_device", true)
	return nil
}

// ChangePin re-proves the current PIN, collects a new one, and rotates the
// wrapped master key to the new PIN-derived key. Cancellation at either
// step leaves the old PIN intact. An enabled biometric factor has its
// backup key material re-wrapped so it keeps working.
func (a *Authenticator) ChangePin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	wrapKey, st, err := a.proveSecretLocked(ctx, ReasonLogin)
	if err != nil {
		return err
	}
	defer wrapKey.Wipe()

	resp, err := a.presenter.Present(ctx, Challenge{Reason: ReasonChangePin, Factor: FactorPIN, Attempt: 1})
	if err != nil {
		return fmt.Errorf("presenting challenge: %w", err)
	}
	if resp.Canceled {
		resp.destroy()
		return ErrCanceled
	}
	if resp.NewSecret == nil {
		resp.destroy()
		return fmt.Errorf("challenge response carried no new secret")
	}
	newPin, err := resp.NewSecret.Bytes()
	resp.destroy()
	if err != nil {
		return err
	}
	defer util.WipeBytes(newPin)

	newSalt, err := util.RandomBytes(16)
	if err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	newWrapKey, newCommitment, err := deriveWrapKey(a.id, newPin, newSalt, a.kdfParams)
	if err != nil {
		return err
	}
	defer newWrapKey.Wipe()

	ek, err := key.UnmarshalEncryptedKey(st.WrappedMaster)
	if err != nil {
		return fmt.Errorf("decoding wrapped master key: %w", err)
	}
	master, err := key.UnwrapKey(ek, wrapKey)
	if err != nil {
		return fmt.Errorf("unwrapping master key: %w", err)
	}
	defer master.Wipe()

	if err := ek.Rotate(wrapKey, newWrapKey); err != nil {
		return fmt.Errorf("rotating master key wrap: %w", err)
	}
	rotatedJSON, err := json.Marshal(ek)
	if err != nil {
		return fmt.Errorf("encoding rotated master key: %w", err)
	}

	newState := &factorState{
		Enabled:       true,
		Salt:          newSalt,
		KDF:           a.kdfParams,
		Commitment:    newCommitment,
		WrappedMaster: rotatedJSON,
		Failures:      0,
	}
	if err := a.saveState(FactorPIN, newState); err != nil {
		return err
	}

	a.rotateBiometricBackupLocked(wrapKey, newWrapKey)

	if err := a.setMasterLocked(master); err != nil {
		return err
	}
	a.logger.Info("pin changed", "id", a.id)
	return nil
}

// rotateBiometricBackupLocked re-wraps the biometric backup key under the
// new PIN key. The PIN record is already committed; a failure here only
// costs biometric re-enrollment after a later device-key loss, so it is
// logged rather than failing the whole operation.
func (a *Authenticator) rotateBiometricBackupLocked(oldKey, newKey key.Key) {
	bst, err := a.loadState(FactorBiometric)
	if err != nil {
		a.logger.Error("loading biometric state for backup rotation", "id", a.id, "error", err)
		return
	}
	if !bst.Enabled || len(bst.BackupWrapped) == 0 {
		return
	}
	bek, err := key.UnmarshalEncryptedKey(bst.BackupWrapped)
	if err != nil {
		a.logger.Error("decoding biometric backup key", "id", a.id, "error", err)
		return
	}
	if err := bek.Rotate(oldKey, newKey); err != nil {
		a.logger.Error("rotating biometric backup key", "id", a.id, "error", err)
		return
	}
	backupJSON, err := json.Marshal(bek)
	if err != nil {
		a.logger.Error("encoding biometric backup key", "id", a.id, "error", err)
		return
	}
	bst.BackupWrapped = backupJSON
	if err := a.saveState(FactorBiometric, bst); err != nil {
		a.logger.Error("persisting biometric backup key", "id", a.id, "error", err)
	}
}
