package cmd

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/onecloud"
)

// errConfig marks failures caused by missing or invalid configuration.
var errConfig = stderrors.New("configuration error")

// exitCodeFor maps a command error onto a foundry exit code.
func exitCodeFor(err error) foundry.ExitCode {
	if stderrors.Is(err, errConfig) || stderrors.Is(err, onecloud.ErrMissingToken) {
		return foundry.ExitConfigInvalid
	}
	if oe, ok := onecloud.AsError(err); ok && oe.Kind == onecloud.KindTransport {
		return foundry.ExitExternalServiceUnavailable
	}
	return foundry.ExitFailure
}

// writeErrorRecord prints the uniform {ERROR_CODE, ERROR_MESSAGE} record.
func writeErrorRecord(w io.Writer, err error) error {
	data, mErr := json.Marshal(onecloud.RecordFor(err))
	if mErr != nil {
		return mErr
	}
	_, wErr := fmt.Fprintln(w, string(data))
	return wErr
}

// ExitForError prints err's record on stderr and exits with its code.
func ExitForError(err error) {
	if err == nil {
		return
	}
	_ = writeErrorRecord(os.Stderr, err)

	code := exitCodeFor(err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}

// ExitWithCode logs msg with exit code metadata and exits.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr is used before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
