/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import (
	"html/template"
	"net/http"
)

var configPageTemplate = template.Must(template.New("config").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>orchestra</title>
<style>
body { font-family: monospace; margin: 2rem; background: #111; color: #ddd; }
h1 { color: #6cf; }
table { border-collapse: collapse; }
td { padding: 0.2rem 1rem 0.2rem 0; }
td.k { color: #888; }
a { color: #6cf; }
</style>
</head>
<body>
<h1>orchestra</h1>
<table>
<tr><td class="k">listen_addr</td><td>{{.ListenAddr}}</td></tr>
<tr><td class="k">auth_enabled</td><td>{{.AuthEnabled}}</td></tr>
<tr><td class="k">diagnostics_mysql</td><td>{{.HasDiagnostics}}</td></tr>
<tr><td class="k">telegram</td><td>{{.HasTelegram}}</td></tr>
<tr><td class="k">db_execute_enabled</td><td>{{.DBExecuteEnabled}}</td></tr>
<tr><td class="k">otlp_endpoint</td><td>{{.OTLPEndpoint}}</td></tr>
</table>
<p>
<a href="/api/agents">agents</a> ·
<a href="/api/runs">runs</a> ·
<a href="/api/topology/approvals">topology approvals</a> ·
<a href="/api/tasks">tasks</a> ·
<a href="/api/audit">audit</a> ·
<a href="/metrics">metrics</a>
</p>
</body>
</html>
`))

type configPageData struct {
	ListenAddr       string
	AuthEnabled      bool
	HasDiagnostics   bool
	HasTelegram      bool
	DBExecuteEnabled bool
	OTLPEndpoint     string
}

func (s *Server) handleConfigPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := configPageData{
		ListenAddr:       s.cfg.ListenAddr,
		AuthEnabled:      s.cfg.AuthEnabled,
		HasDiagnostics:   s.cfg.HasDiagnosticsMySQL(),
		HasTelegram:      s.cfg.HasTelegram(),
		DBExecuteEnabled: s.cfg.DBExecuteEnabled,
		OTLPEndpoint:     s.cfg.OTLPEndpoint,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := configPageTemplate.Execute(w, data); err != nil {
		s.logger.Sugar().Warnf("dashboard: render config page: %v", err)
	}
}
