package arrivals

import (
	"time"

	"github.com/yegors/arrival-board/internal/jsonutil"
)

// ExtractOptions controls one extraction pass
type ExtractOptions struct {
	Max       int // Maximum accepted records; <= 0 yields nothing
	Filter    RouteFilter
	Occupancy OccupancyModel
	Now       time.Time
}

// Extract turns a SIRI StopMonitoring response into arrivals in upstream
// order. It never fails: malformed input produces an empty Result, and missing
// fields become their unknown sentinels.
func Extract(body []byte, opts ExtractOptions) Result {
	doc, err := jsonutil.Parse(body)
	if err != nil {
		return Result{}
	}
	return extractVisits(monitoredVisits(doc), opts)
}

// monitoredVisits walks Siri.ServiceDelivery.StopMonitoringDelivery[0].MonitoredStopVisit
func monitoredVisits(doc jsonutil.Value) jsonutil.Value {
	delivery := jsonutil.Index(jsonutil.Path(doc, "Siri", "ServiceDelivery", "StopMonitoringDelivery"), 0)
	return jsonutil.Object(delivery, "MonitoredStopVisit")
}

func extractVisits(visits jsonutil.Value, opts ExtractOptions) Result {
	var res Result
	n := jsonutil.Len(visits)

	for i := 0; i < n; i++ {
		journey := jsonutil.Object(jsonutil.Index(visits, i), "MonitoredVehicleJourney")
		call := jsonutil.Object(journey, "MonitoredCall")

		if res.StopName == "" {
			res.StopName = scalarOrFirst(jsonutil.Object(call, "StopPointName"))
		}
		if len(res.Arrivals) >= opts.Max {
			// keep scanning only for a stop name
			continue
		}

		lineRef, ok := jsonutil.String(jsonutil.Object(journey, "LineRef"))
		route := NormalizeRoute(lineRef, ok && lineRef != "")
		if !opts.Filter.Allows(route) {
			continue
		}

		res.Arrivals = append(res.Arrivals, buildArrival(route, journey, call, opts))
	}

	return res
}

func buildArrival(route string, journey, call jsonutil.Value, opts ExtractOptions) Arrival {
	a := Arrival{
		Route:               route,
		Vehicle:             UnknownVehicle,
		Destination:         UnknownDestName,
		StopsAway:           Unknown,
		MinutesUntilArrival: Unknown,
		MilesAway:           UnknownMiles,
	}

	if v, ok := jsonutil.String(jsonutil.Object(journey, "VehicleRef")); ok && v != "" {
		a.Vehicle = v
	}
	if d := scalarOrFirst(jsonutil.Object(journey, "DestinationName")); d != "" {
		a.Destination = d
	}

	ts := firstNonEmptyString(
		jsonutil.Object(call, "ExpectedArrivalTime"),
		jsonutil.Object(call, "AimedArrivalTime"),
	)
	if t := ParseISO8601(ts); !t.IsZero() {
		a.ExpectedArrival = t
		a.MinutesUntilArrival = MinutesUntil(t, opts.Now)
	}

	callDistances := jsonutil.Path(call, "Extensions", "Distances")
	journeyDistances := jsonutil.Path(journey, "Extensions", "Distances")

	if stops, ok := FirstPresentInt(
		nonNegativeInt(callDistances, "StopsFromCall"),
		nonNegativeInt(callDistances, "StopsAway"),
		nonNegativeInt(journeyDistances, "StopsFromCall"),
	); ok {
		a.StopsAway = stops
	}

	if meters, ok := FirstPresentFloat(
		nonNegativeFloat(callDistances, "DistanceFromCall"),
		nonNegativeFloat(callDistances, "DistanceFromStop"),
		nonNegativeFloat(journeyDistances, "DistanceFromCall"),
		nonNegativeFloat(journeyDistances, "DistanceFromStop"),
	); ok {
		a.MilesAway = MetersToMiles(meters)
	}

	a.EstimatedOccupancy = opts.Occupancy.Estimate(a.MinutesUntilArrival, a.StopsAway)
	return a
}

// scalarOrFirst reads a SIRI name that may be a string or an array of strings
func scalarOrFirst(v jsonutil.Value) string {
	if s, ok := jsonutil.String(v); ok {
		return s
	}
	s, _ := jsonutil.String(jsonutil.Index(v, 0))
	return s
}

func firstNonEmptyString(values ...jsonutil.Value) string {
	for _, v := range values {
		if s, ok := jsonutil.String(v); ok && s != "" {
			return s
		}
	}
	return ""
}
