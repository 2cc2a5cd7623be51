package templates

import (
	"html/template"
	"strings"

	"flightstream-service/internal/domain/entity"
)

// DashboardName is the name the dashboard page is registered under
const DashboardName = "dashboard"

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"route": func(f entity.Flight) string {
		dep, arr := f.DepartureIATA(), f.ArrivalIATA()
		if dep == "" {
			dep = "?"
		}
		if arr == "" {
			arr = "?"
		}
		return dep + " → " + arr
	},
	"number": func(f entity.Flight) string {
		if f.Flight == nil {
			return ""
		}
		return f.Flight.IATA
	},
}

// Dashboard parses the dashboard page. It panics on a malformed template.
func Dashboard() *template.Template {
	return template.Must(template.New(DashboardName).Funcs(funcs).Parse(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Flight Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.counts span { display: inline-block; margin-right: 1.5rem; font-weight: bold; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
th { background: #f3f3f3; }
</style>
</head>
<body>
<h1>Flight Dashboard</h1>
<div class="counts">
  <span>Scheduled: <em id="scheduledCount">{{.ScheduledCount}}</em></span>
  <span>Active: <em id="activeCount">{{.ActiveCount}}</em></span>
  <span>Landed: <em id="landedCount">{{.LandedCount}}</em></span>
  <span>Cancelled: <em id="cancelledCount">{{.CancelledCount}}</em></span>
</div>
<table>
  <thead>
    <tr><th>Date</th><th>Flight</th><th>Airline</th><th>Route</th><th>Status</th><th>Predicted</th></tr>
  </thead>
  <tbody id="flights">
  {{range .Flights}}
    <tr>
      <td>{{.FlightDate}}</td>
      <td>{{number .}}</td>
      <td>{{.AirlineName}}</td>
      <td>{{route .}}</td>
      <td>{{upper .FlightStatus}}</td>
      <td>{{.PredictedStatus}}</td>
    </tr>
  {{else}}
    <tr><td colspan="6">No flights available</td></tr>
  {{end}}
  </tbody>
</table>
<script>
(function () {
  var statuses = ["scheduled", "active", "landed", "cancelled"];
  function cell(text) {
    var td = document.createElement("td");
    td.textContent = text || "";
    return td;
  }
  function render(flights) {
    var counts = {scheduled: 0, active: 0, landed: 0, cancelled: 0};
    var body = document.getElementById("flights");
    body.innerHTML = "";
    flights.forEach(function (f) {
      var status = (f.flight_status || "").toLowerCase();
      if (status in counts) counts[status]++;
      var tr = document.createElement("tr");
      tr.appendChild(cell(f.flight_date));
      tr.appendChild(cell(f.flight ? f.flight.iata : ""));
      tr.appendChild(cell(f.airline ? f.airline.name : ""));
      tr.appendChild(cell(((f.departure && f.departure.iata) || "?") + " → " + ((f.arrival && f.arrival.iata) || "?")));
      tr.appendChild(cell(status.toUpperCase()));
      tr.appendChild(cell(f.predicted_status));
      body.appendChild(tr);
    });
    statuses.forEach(function (s) {
      document.getElementById(s + "Count").textContent = counts[s];
    });
  }
  var source = new EventSource("/dashboard/stream");
  source.addEventListener("flights", function (e) {
    render(JSON.parse(e.data) || []);
  });
})();
</script>
</body>
</html>
`
