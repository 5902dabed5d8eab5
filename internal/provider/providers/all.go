// Package providers imports every provider implementation to trigger its
// init() registration. cmd/sherpa-dns blank-imports this package so adding
// a new provider never requires touching main.go.
package providers

import (
	_ "github.com/stedrow/sherpa-dns/internal/provider/cloudflare"
)
