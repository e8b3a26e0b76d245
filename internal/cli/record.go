package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trailmark/trailmark/internal/canonical"
	"github.com/trailmark/trailmark/internal/protocol"
	"github.com/trailmark/trailmark/internal/store"
)

// RecordView is the JSON shape commands print for a record.
type RecordView struct {
	Kind      string           `json:"kind"`
	ID        string           `json:"id"`
	Payload   canonical.Object `json:"payload"`
	Digest    string           `json:"digest"`
	TxRef     string           `json:"txRef,omitempty"`
	BackupCID string           `json:"backupCid,omitempty"`
	CreatedBy string           `json:"createdBy"`
	UpdatedBy string           `json:"updatedBy"`
	CreatedAt string           `json:"createdAt"`
	UpdatedAt string           `json:"updatedAt"`
}

func viewOf(rec *store.Record) RecordView {
	v := RecordView{
		Kind:      string(rec.Kind),
		ID:        rec.ID,
		Payload:   rec.Payload,
		Digest:    string(rec.Digest),
		TxRef:     rec.TxRef,
		CreatedBy: rec.Audit.CreatedBy,
		UpdatedBy: rec.Audit.UpdatedBy,
		CreatedAt: rec.Audit.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.Audit.UpdatedAt.Format(time.RFC3339),
	}
	if rec.Backup != nil {
		v.BackupCID = rec.Backup.ContentID
	}
	return v
}

func (v RecordView) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", v.Kind, v.ID)
	fmt.Fprintf(&b, "  digest:  %s\n", v.Digest)
	if v.TxRef != "" {
		fmt.Fprintf(&b, "  tx:      %s\n", v.TxRef)
	}
	if v.BackupCID != "" {
		fmt.Fprintf(&b, "  backup:  %s\n", v.BackupCID)
	}
	fmt.Fprintf(&b, "  created: %s by %s\n", v.CreatedAt, v.CreatedBy)
	fmt.Fprintf(&b, "  updated: %s by %s", v.UpdatedAt, v.UpdatedBy)
	return b.String()
}

// reportError renders a pipeline error and converts it to an ExitError
// so the process exits with a meaningful code.
func reportError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	exit := ExitFailure
	switch {
	case protocol.IsValidationError(err):
		code = ErrCodeBadInput
		exit = ExitCommandError
	case protocol.IsHashMismatch(err):
		code = ErrCodeMismatch
	case protocol.IsIntegrityViolation(err):
		code = ErrCodeIntegrity
	case protocol.IsLedgerFailure(err):
		code = ErrCodeLedger
	case errors.Is(err, store.ErrNotFound):
		code = ErrCodeNotFound
		exit = ExitCommandError
	}

	if outErr := formatter.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	// empty message marks the error as already rendered
	return &ExitError{Code: exit, Err: err}
}
