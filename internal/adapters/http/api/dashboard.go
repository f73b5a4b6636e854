package api

import "net/http"

// DashboardHandler serves a minimal live-alerts page for manual
// inspection. It opens a WebSocket to /ws/alerts and prints every
// alert as it arrives.
type DashboardHandler struct{}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Handle handles GET /dashboard requests.
func (h *DashboardHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Activity Bridge - Live Alerts</title>
<style>
  body { font-family: monospace; margin: 2rem; background: #111; color: #ddd; }
  h1 { font-size: 1.2rem; }
  #state { color: #888; }
  #state.open { color: #4c4; }
  li { margin: 0.2rem 0; list-style: none; }
  .ts { color: #888; margin-right: 0.6rem; }
  .student { color: #8cf; }
</style>
</head>
<body>
<h1>Live Alerts <span id="state">connecting...</span></h1>
<ul id="alerts"></ul>
<script>
const state = document.getElementById('state');
const list = document.getElementById('alerts');
const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
const ws = new WebSocket(proto + '//' + location.host + '/ws/alerts');
ws.onopen = () => { state.textContent = 'live'; state.className = 'open'; };
ws.onclose = () => { state.textContent = 'disconnected'; state.className = ''; };
ws.onmessage = (ev) => {
  const a = JSON.parse(ev.data);
  const li = document.createElement('li');
  const when = new Date(a.timestamp * 1000).toISOString();
  li.innerHTML = '<span class="ts">' + when + '</span>' +
    '<span class="student">' + a.student_id + '</span> ' +
    a.status + ' (' + a.confidence.toFixed(2) + ')';
  list.prepend(li);
  while (list.children.length > 200) list.removeChild(list.lastChild);
};
</script>
</body>
</html>
`
