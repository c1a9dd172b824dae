package diag

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"blogpipe/internal/metrics"
)

func TestRecorder_KeepsMostRecent(t *testing.T) {
	r := NewRecorder(2)
	r.Report(Diagnostic{Kind: KindLoadFailure, DocID: "a"})
	r.Report(Diagnostic{Kind: KindDuplicateID, DocID: "b"})
	r.Report(Diagnostic{Kind: KindLoadFailure, DocID: "c"})

	all := r.All()
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].DocID)
	require.Equal(t, "c", all[1].DocID)
	require.Len(t, r.Kind(KindLoadFailure), 1)

	r.Reset()
	require.Empty(t, r.All())
}

func TestMulti_FansOutAndSkipsNil(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	s := Multi(a, nil, b)
	s.Report(Diagnostic{Kind: KindUnresolvedReference, DocID: "x"})
	require.Len(t, a.All(), 1)
	require.Len(t, b.All(), 1)
}

func TestLogSink_WritesWarnEvent(t *testing.T) {
	var buf bytes.Buffer
	s := LogSink{Log: zerolog.New(&buf)}
	s.Report(Diagnostic{Kind: KindMalformedMetadata, DocID: "post", Field: "date", Detail: "bad date"})

	out := buf.String()
	require.Contains(t, out, `"level":"warn"`)
	require.Contains(t, out, `"kind":"malformed_metadata"`)
	require.Contains(t, out, `"field":"date"`)
	require.Contains(t, out, `"message":"bad date"`)
}

func TestMetricsSink_CountsByKind(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := MetricsSink{M: m}
	s.Report(Diagnostic{Kind: KindUnresolvedReference})
	s.Report(Diagnostic{Kind: KindUnresolvedReference})

	require.InDelta(t, 2, testutil.ToFloat64(m.DiagnosticTotal.WithLabelValues(string(KindUnresolvedReference))), 0)
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Kind: KindUnresolvedReference, DocID: "post", Line: 4, Detail: "/blogs/gone"}
	require.Equal(t, "unresolved_reference post:4: /blogs/gone", d.String())
}

func TestOr(t *testing.T) {
	require.Equal(t, Discard, Or(nil))
	r := NewRecorder(0)
	require.Equal(t, Sink(r), Or(r))
}

func TestOnce_ForwardsDistinctDiagnosticsOnce(t *testing.T) {
	r := NewRecorder(0)
	o := NewOnce(r)
	d := Diagnostic{Kind: KindUnresolvedReference, DocID: "post", Line: 2}

	o.Report(d)
	o.Report(d)
	o.Report(Diagnostic{Kind: KindUnresolvedReference, DocID: "post", Line: 3})
	require.Len(t, r.All(), 2)

	o.Reset()
	o.Report(d)
	require.Len(t, r.All(), 3)
}
