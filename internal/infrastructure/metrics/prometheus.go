package metrics

import (
	"expvar"
	"fmt"
	"io"
	"sort"
	"strings"
)

type meta struct {
	typ, help string
	isMap     bool
	label     string
}

var metas = map[string]meta{
	"mpcflow_compiles_total":             {typ: "counter", help: "Compilations by outcome", isMap: true, label: "outcome"},
	"mpcflow_diagnostics_total":          {typ: "counter", help: "Compile diagnostics by code", isMap: true, label: "code"},
	"mpcflow_connections_rejected_total": {typ: "counter", help: "Rejected canvas connections by reason", isMap: true, label: "reason"},
	"mpcflow_tasks_compiled_total":       {typ: "counter", help: "Plan tasks emitted", isMap: false},
	"mpcflow_canvas_nodes":               {typ: "gauge", help: "Nodes on the last changed canvas", isMap: false},
	"mpcflow_canvas_edges":               {typ: "gauge", help: "Edges on the last changed canvas", isMap: false},
	"mpcflow_drafts_saved_total":         {typ: "counter", help: "Drafts saved", isMap: false},
}

// WritePrometheus renders the mpcflow metrics in Prometheus text format.
// Output is sorted by metric name and label value.
func WritePrometheus(w io.Writer) error {
	names := make([]string, 0, len(metas))
	for name := range metas {
		names = append(names, name)
	}
	sort.Strings(names)

	var err error
	printf := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	for _, name := range names {
		m := metas[name]
		v := expvar.Get(name)
		if v == nil {
			continue
		}
		printf("# HELP %s %s\n", name, sanitizeHelp(m.help))
		printf("# TYPE %s %s\n", name, m.typ)
		if !m.isMap {
			printf("%s %s\n", name, v.String())
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			printf("%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
	return err
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote and newline
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
