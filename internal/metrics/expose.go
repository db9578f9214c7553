package metrics

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Gather renders the default registry in Prometheus text exposition format.
// The server writes responses through its own codec rather than net/http, so
// promhttp.Handler cannot be mounted; this produces the same bytes.
func Gather() ([]byte, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("encode metric family %q: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// ContentType is the value served with the text exposition body.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"
