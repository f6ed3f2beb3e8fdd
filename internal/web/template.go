package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/sweeney/air-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"aqiClass": func(aqi int) string {
		switch {
		case aqi <= 50:
			return "good"
		case aqi <= 100:
			return "moderate"
		case aqi <= 150:
			return "sensitive"
		case aqi <= 200:
			return "unhealthy"
		case aqi <= 300:
			return "very-unhealthy"
		default:
			return "hazardous"
		}
	},
	"conc": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Air Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.aqi { font-size: 2.4em; font-weight: bold; }
.good { color: green; }
.moderate { color: #b8860b; }
.sensitive { color: orange; }
.unhealthy { color: red; }
.very-unhealthy { color: purple; }
.hazardous { color: maroon; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Air Sensor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Air Quality</h2>
<table>
<tr><th>AQI</th><td><span id="aqi" class="aqi {{aqiClass .AQI}}">{{if .Ready}}{{.AQI}}{{else}}–{{end}}</span></td></tr>
<tr><th>Category</th><td id="category">{{if .Ready}}{{.Category}}{{else}}waiting for first reading{{end}}</td></tr>
<tr><th>Dominant</th><td id="dominant">{{if .Ready}}{{.Dominant}}{{end}}</td></tr>
</table>

<h2>Pollutants</h2>
<table>
{{range .Pollutants}}<tr><th>{{.Name}}</th><td>{{conc .Value}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Heater phase</th><td>{{.HeaterPhase}}</td></tr>
<tr><th>Polls</th><td>{{.Polls}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "env/air-sensor/readings";
  var dot = document.getElementById("live-dot");
  var aqiEl = document.getElementById("aqi");
  var catEl = document.getElementById("category");
  var domEl = document.getElementById("dominant");

  function aqiClass(aqi) {
    if (aqi <= 50) return "good";
    if (aqi <= 100) return "moderate";
    if (aqi <= 150) return "sensitive";
    if (aqi <= 200) return "unhealthy";
    if (aqi <= 300) return "very-unhealthy";
    return "hazardous";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.air) {
        aqiEl.textContent = msg.air.aqi;
        aqiEl.className = "aqi " + aqiClass(msg.air.aqi);
        catEl.textContent = msg.air.category;
        domEl.textContent = msg.air.dominant;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

// pollutantRow is a name/value pair for stable table rendering.
type pollutantRow struct {
	Name  string
	Value float64
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Map iteration order is random; sort pollutants for a stable page.
	rows := make([]pollutantRow, 0, len(snap.Concentrations))
	for p, c := range snap.Concentrations {
		rows = append(rows, pollutantRow{Name: string(p), Value: c})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Pollutants []pollutantRow
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Pollutants: rows,
	}
	indexTmpl.Execute(w, data)
}
