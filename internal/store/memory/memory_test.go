package memory

import (
	"testing"

	"github.com/msiSibs/urlShortener/internal/core"
	"github.com/msiSibs/urlShortener/internal/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store { return New() })
}
