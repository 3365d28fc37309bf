package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/glade/internal/status"
)

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime":  formatUptime,
	"dayName": func(i int) string { return dayNames[i] },
	"epoch": func(e uint64) string {
		if e == 0 {
			return "unknown time"
		}
		return time.Unix(int64(e), 0).UTC().Format(time.RFC3339)
	},
	"state":   status.StateName,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Glade</title>
<style>
body { font: 14px/1.4 monospace; max-width: 640px; margin: 1.5em auto; padding: 0 1em; color: #222; }
h2 { font-size: 1.1em; margin-top: 1.5em; border-bottom: 2px solid #444; }
table { width: 100%; border-spacing: 0; }
th, td { text-align: left; padding: 3px 6px; vertical-align: top; }
th { width: 35%; font-weight: normal; color: #555; }
.on, .up { color: #2a7a2a; font-weight: bold; }
.off { color: #aaa; }
.down { color: #b22; }
</style>
</head>
<body>
<h1>Glade</h1>

<h2>State</h2>
<table>
<tr><th>Output</th><td class="{{if .Active}}on{{else}}off{{end}}">{{state .Active}}</td></tr>
<tr><th>Last trigger</th><td>{{with .LastTrigger}}{{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}} ({{.Source}}){{else}}never{{end}}</td></tr>
<tr><th><form method="get" action="/trigger"><button type="submit">Trigger now</button></form></th><td></td></tr>
</table>

<h2>Schedule</h2>
<table>
<tr><th>Timer</th><td class="{{if .Schedule.Active}}on{{else}}off{{end}}">{{if .Schedule.Active}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Interval</th><td>{{.Schedule.Interval}}s</td></tr>
<tr><th>Days</th><td>{{range $i, $on := .Schedule.Days}}<span class="{{if $on}}on{{else}}off{{end}}">{{dayName $i}}</span> {{end}}</td></tr>
<tr><th>Hours</th><td>{{range $i, $on := .Schedule.Hours}}<span class="{{if $on}}on{{else}}off{{end}}">{{$i}}</span> {{end}}</td></tr>
</table>

<h2>Trigger Log</h2>
<table>
{{range .History}}<tr><td>{{epoch .}}</td></tr>
{{else}}<tr><td>empty</td></tr>
{{end}}</table>

<h2>Trigger Counts</h2>
<table>
<tr><th>Timer</th><td>{{.Counts.Timer}}</td></tr>
<tr><th>Button</th><td>{{.Counts.Button}}</td></tr>
<tr><th>Remote</th><td>{{.Counts.Remote}}</td></tr>
<tr><th>Rejected</th><td>{{.Counts.Rejected}}</td></tr>
</table>

<h2>Network</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}up{{else}}down{{end}}">{{if .MQTTConnected}}up{{else}}down{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
{{if .Network}}<tr><th>Link</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Booted</th><td>{{.StartTime.UTC.Format "2006-01-02 15:04:05"}} UTC</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>Heartbeat</th><td>{{with .Config.HeartbeatMs}}every {{.}}ms{{else}}off{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}

// formatUptime renders d as "HH:MM:SS", prefixed with whole days if any.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	days, secs := secs/86400, secs%86400
	clock := fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	if days == 0 {
		return clock
	}
	return fmt.Sprintf("%dd %s", days, clock)
}
