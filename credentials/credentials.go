// Package credentials embeds the device's optional secrets as a plain-text
// file beside this source, never checked in with a real value, read at
// build time.
//
// The control protocol itself carries no authentication; the wire framing
// has no room for a preamble without changing internal/protocol, so this
// token gates cmd/fwctl locally instead: any mutating command refuses to
// run unless the operator's token (the -token flag, the FWCTL_TOKEN
// environment variable, or an interactive prompt) matches this compiled-in
// value.
package credentials

import (
	_ "embed"
)

var (
	//go:embed debug_token.text
	debugToken string
)

// DebugToken returns the contents of debug_token.text predefined by the
// user in this package. An empty value disables the authenticated mode
// entirely, which cmd/fwctl treats as "authentication not required".
//
// Deprecated: marked deprecated so IDEs warn against its use — this value
// should be provisioned outside of the repo for any real deployment.
func DebugToken() string {
	return debugToken
}
