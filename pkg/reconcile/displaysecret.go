// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/metricsexporter"
	"github.com/jdrupes-go/vmoperator/pkg/resources"
	"github.com/jdrupes-go/vmoperator/pkg/util/security"
)

// DisplaySecretReconciler creates the initial display-access secret and
// handles on-demand password rotation for GetDisplaySecret (spec.md
// §4.8).
type DisplaySecretReconciler struct{}

// NewDisplaySecretReconciler builds a DisplaySecretReconciler.
func NewDisplaySecretReconciler() *DisplaySecretReconciler {
	return &DisplaySecretReconciler{}
}

// Reconcile creates the display secret with expiry="now" the first time
// it is needed. It only runs on specChanged, and does nothing if the VM
// opted out of secret generation.
func (r *DisplaySecretReconciler) Reconcile(rc *Context, specChanged bool) error {
	if !specChanged || !rc.Vm.Spec.Vm.Display.Spice.GenerateSecret {
		return nil
	}

	name := resources.DisplaySecretName(rc.Vm)
	_, err := rc.Client.CoreV1().Secrets(rc.Vm.Namespace).Get(rc.Ctx, name, metav1.GetOptions{})
	if err == nil {
		return nil // already exists; Rotate handles password lifecycle from here.
	}
	if !k8serrors.IsNotFound(err) {
		return errors.Wrap(err, "checking for existing display secret")
	}

	password, err := security.GeneratePassword()
	if err != nil {
		return errors.Wrap(err, "generating initial display password")
	}
	secret := resources.NewDisplaySecret(rc.Vm, password, "now")
	if _, err := rc.Client.CoreV1().Secrets(rc.Vm.Namespace).Create(rc.Ctx, secret, metav1.CreateOptions{}); err != nil {
		if k8serrors.IsAlreadyExists(err) {
			return nil
		}
		return errors.Wrap(err, "creating display secret")
	}
	return nil
}

// Rotate implements the GetDisplaySecret control event (spec.md §4.8
// "Rotate (on demand)"). It returns the password the caller should hand
// back to the console UI.
func (r *DisplaySecretReconciler) Rotate(rc *Context, user string) (string, error) {
	if !rc.Vm.Status.IsConditionTrue(vmoperatorv1.ConditionRunning) {
		return "", fmt.Errorf("vm %s is not running", rc.Vm.Name)
	}

	if err := r.patchConsoleUser(rc, user); err != nil {
		return "", err
	}

	name := resources.DisplaySecretName(rc.Vm)
	secret, err := rc.Client.CoreV1().Secrets(rc.Vm.Namespace).Get(rc.Ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrap(err, "reading display secret")
	}

	validity := rc.Config.Reconciler.DisplaySecretPasswordValidity
	if validity <= 0 {
		validity = constants.DefaultPasswordValidity
	}

	if stillValid(secret, validity) {
		return string(secret.Data["password"]), nil
	}

	newPassword, err := security.GeneratePassword()
	if err != nil {
		return "", errors.Wrap(err, "generating rotated display password")
	}

	expectedSerial := rc.Vm.Status.DisplayPasswordSerial + 1
	latch := bus.NewLatch()
	rc.Channel.RegisterPending(&bus.PendingConsoleRequest{
		ExpectedSerial: expectedSerial,
		Deadline:       time.Now().Add(constants.ConsoleRequestTimeout),
		Latch:          latch,
	})

	secret.Data["password"] = []byte(newPassword)
	secret.Data["expiry"] = []byte(fmt.Sprintf("%d", time.Now().Add(time.Duration(validity)*time.Second).Unix()))
	if _, err := rc.Client.CoreV1().Secrets(rc.Vm.Namespace).Update(rc.Ctx, secret, metav1.UpdateOptions{}); err != nil {
		return "", errors.Wrap(err, "updating rotated display secret")
	}

	ctx, cancel := context.WithTimeout(rc.Ctx, constants.ConsoleRequestTimeout)
	defer cancel()
	latch.Wait(ctx) // timeout is not an error: the event completes with newPassword regardless (spec.md §4.8 step 5).
	metricsexporter.PasswordRotations.Inc()

	return newPassword, nil
}

func (r *DisplaySecretReconciler) patchConsoleUser(rc *Context, user string) error {
	patch, err := json.Marshal(map[string]any{"status": map[string]any{"consoleUser": user}})
	if err != nil {
		return errors.Wrap(err, "marshalling consoleUser status patch")
	}
	return RetryOnConflict(func() error {
		_, err := rc.Dynamic.Resource(vmoperatorv1.GVRVirtualMachine).Namespace(rc.Vm.Namespace).
			Patch(rc.Ctx, rc.Vm.Name, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: constants.FieldManager}, "status")
		return err
	})
}

// stillValid reports whether a display secret's current password is
// usable without rotation: "never" expiring, or its expiry timestamp is
// still beyond now+validitySeconds, leaving a full validity window
// before the caller would have to rotate again (spec.md §4.8 step 3).
func stillValid(secret *corev1.Secret, validitySeconds int) bool {
	expiry := string(secret.Data["expiry"])
	if expiry == "" || expiry == "now" {
		return false
	}
	if expiry == "never" {
		return true
	}
	var unixSeconds int64
	if _, err := fmt.Sscanf(expiry, "%d", &unixSeconds); err != nil {
		return false
	}
	threshold := time.Now().Add(time.Duration(validitySeconds) * time.Second)
	return threshold.Before(time.Unix(unixSeconds, 0))
}
