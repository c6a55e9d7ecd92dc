// Package apperr defines the pipeline error taxonomy. Every failure surfaced
// to a caller is one of these types so the originating stage is identifiable
// with errors.As.
package apperr

import "fmt"

// ScriptGenerationError reports bad or empty structured output from the
// text-generation service.
type ScriptGenerationError struct {
	Reason string
	Err    error
}

func (e *ScriptGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("script generation failed: %s", e.Reason)
}

func (e *ScriptGenerationError) Unwrap() error { return e.Err }

// VoiceSynthesisError reports a failed speech-synthesis call, indexed to the
// segment whose clip could not be produced.
type VoiceSynthesisError struct {
	SegmentIndex int
	Err          error
}

func (e *VoiceSynthesisError) Error() string {
	return fmt.Sprintf("voice synthesis failed at segment %d: %v", e.SegmentIndex, e.Err)
}

func (e *VoiceSynthesisError) Unwrap() error { return e.Err }

// BackgroundMediaError reports a segment left without a background video
// after caller media and all stock-search fallbacks.
type BackgroundMediaError struct {
	SegmentIndex int
	Query        string
	Err          error
}

func (e *BackgroundMediaError) Error() string {
	return fmt.Sprintf("no background media for segment %d (query %q): %v", e.SegmentIndex, e.Query, e.Err)
}

func (e *BackgroundMediaError) Unwrap() error { return e.Err }

// CompositionError reports an encoding-engine subprocess failure.
type CompositionError struct {
	Stage string
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition failed at stage %s: %v", e.Stage, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// StorageError reports an object-storage upload or download failure.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// InsufficientFundsError reports a wallet balance below the render cost, or a
// lost race on the atomic deduction.
type InsufficientFundsError struct {
	AccountID string
	Balance   float64
	Required  float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("account %s has insufficient funds: balance %.2f, required %.2f", e.AccountID, e.Balance, e.Required)
}

// AccountNotFoundError reports an unknown wallet account.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}
