package app

import "errors"

// Pipeline stages, used for error context and metrics labels.
const (
	StageLink      = "link"
	StageUnlink    = "unlink"
	StageProvision = "provision"
	StageBalance   = "balance"
	StageBuild     = "build"
	StageSign      = "sign"
	StageSubmit    = "submit"
)

var (
	ErrNotAuthenticated   = errors.New("session is not authenticated")
	ErrNoPrimaryWallet    = errors.New("no wallet identity is linked")
	ErrNoSmartAccount     = errors.New("smart account is not provisioned")
	ErrSessionTornDown    = errors.New("session was torn down")
	ErrIdentityNotLinked  = errors.New("identity is not linked")
	ErrLastLinkedIdentity = errors.New("cannot unlink the last linked identity")

	ErrProvisioningFailed = errors.New("smart account provisioning failed")
	ErrBuildRejected      = errors.New("transaction build was rejected")
	ErrSigningRejected    = errors.New("signing was rejected")
	ErrSubmissionRejected = errors.New("submission was rejected")
	// ErrUnknownOutcome marks a submission that got no backend response. It is
	// distinct from a rejection: the operation may have executed, so callers
	// must not resubmit blindly.
	ErrUnknownOutcome = errors.New("submission outcome is unknown")
)

// StageError attributes a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func wrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StageError
	if errors.As(err, &existing) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage reports which pipeline stage an error came from, or "" if the
// error carries no stage attribution.
func FailedStage(err error) string {
	var staged *StageError
	if errors.As(err, &staged) {
		return staged.Stage
	}
	return ""
}
