// Package failure turns whatever error escapes a command into the single
// line users see plus the process exit code. The checks run in a fixed
// precedence order and the first structural match wins; anything
// unrecognized degrades to a generic failure line unless the debug level
// asks for the full trace.
package failure

import (
	"fmt"
	"io/fs"
	"net"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/pkg/errors"

	"github.com/objtools/storctl/pkg/acl"
	"github.com/objtools/storctl/pkg/cloud"
	"github.com/objtools/storctl/pkg/command"
	"github.com/objtools/storctl/pkg/provider"
	"github.com/objtools/storctl/pkg/uri"
	"github.com/objtools/storctl/pkg/wildcard"
)

// StackTraceLevel is the debug level above which unclassified failures print
// a stack trace instead of the one-line Failure message.
const StackTraceLevel = 2

const missingCredentialsMessage = "Missing credentials for the given URI(s). " +
	"Does your storctl config file contain all needed credentials?"

const notReadyToAuthenticateMessage = "NotReadyToAuthenticate"

const brokenPipeMessage = `Got a "Broken pipe" error. This can happen when the ` +
	`server closes the connection partway through an upload. If you were ` +
	`uploading a large object you might retry with a smaller object, and see ` +
	`if you get a more specific error code.`

// Classify maps err to the user-facing message and exit code. nil maps to
// ("", 0); every failure exits 1. Wrapped errors classify by their cause.
func Classify(err error, debugLevel int) (string, int) {
	if err == nil {
		return "", 0
	}

	var credErr *provider.CredentialError
	if errors.As(err, &credErr) {
		if credErr.MissingSecret() {
			return missingCredentialsMessage, 1
		}
		return credErr.Error(), 1
	}

	var provErr *provider.UnknownProviderError
	if errors.As(err, &provErr) {
		return provErr.Error(), 1
	}

	var clientErr *cloud.ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Error() + ".", 1
	}

	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		if cmdErr.Informational {
			return cmdErr.Reason, 1
		}
		return cmdErr.Error(), 1
	}

	var aclErr *acl.InvalidACLError
	if errors.As(err, &aclErr) {
		return "InvalidAclError: " + aclErr.Message + ".", 1
	}

	var uriErr *uri.InvalidURIError
	if errors.As(err, &uriErr) {
		return "InvalidUriError: " + uriErr.Message + ".", 1
	}

	if errors.Is(err, cloud.ErrNotReadyToAuthenticate) {
		return notReadyToAuthenticateMessage, 1
	}

	if msg, ok := osErrorMessage(err); ok {
		return msg, 1
	}

	var wildErr *wildcard.Error
	if errors.As(err, &wildErr) {
		return wildErr.Reason, 1
	}

	var respErr *cloud.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Error(), 1
	}

	var resumableErr *cloud.ResumableUploadError
	if errors.As(err, &resumableErr) {
		return "ResumableUploadException: " + resumableErr.Message + ".", 1
	}

	var tooMany *cloud.TooManyAuthHandlersError
	if errors.As(err, &tooMany) {
		return "TooManyAuthHandlerReadyToAuthenticate: " + tooMany.Error() + ".", 1
	}

	if errors.Is(err, syscall.EPIPE) {
		return brokenPipeMessage, 1
	}

	return unknownFailure(err, debugLevel)
}

// osErrorMessage renders filesystem-level failures as "OSError: <strerror>.".
// Socket failures are excluded: they classify further down the ladder.
func osErrorMessage(err error) (string, bool) {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return "", false
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return "OSError: " + strerror(pathErr.Err) + ".", true
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return "OSError: " + strerror(linkErr.Err) + ".", true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return "OSError: " + strerror(sysErr.Err) + ".", true
	}
	return "", false
}

func strerror(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	return err.Error()
}

func unknownFailure(err error, debugLevel int) (string, int) {
	if debugLevel > StackTraceLevel {
		detail := fmt.Sprintf("%+v", err)
		if detail == err.Error() {
			// The chain carries no recorded stack; show where we are now.
			detail += "\n" + string(debug.Stack())
		}
		return detail, 1
	}
	return fmt.Sprintf("Failure: %s.", err), 1
}
