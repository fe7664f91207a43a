package scenario

import "time"

// BuiltIn returns the predefined dispatch flows.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"emergency-dispatch": {
			Name:        "Emergency Dispatch",
			Description: "Count down, connect to emergency services and transmit the incident with ambulance dispatch.",
			Phases: []Phase{
				{
					Name:        "countdown",
					Description: "Rider can cancel before emergency services are contacted.",
					Step:        time.Second,
					Cancelable:  true,
					Triggers:    []Trigger{{Event: EventTimeElapsed, Value: 10, Next: "connecting"}},
				},
				{
					Name:        "connecting",
					Description: "Connecting to emergency services.",
					Triggers:    []Trigger{{Event: EventTimeElapsed, Value: 3, Next: "transmitting"}},
				},
				{
					Name:        "transmitting",
					Description: "Location and sensor data sent; help is on the way.",
					Dispatch:    true,
					Service:     "Ambulance Service",
					ETA:         "8 minutes",
					Triggers:    []Trigger{{Event: EventTimeElapsed, Value: 5, Next: "complete"}},
				},
				{
					Name:        "complete",
					Description: "Dispatch confirmed.",
				},
			},
		},
		"quick-dispatch": {
			Name:        "Quick Dispatch",
			Description: "Short countdown for demos; contacts the nearest responder straight away.",
			Phases: []Phase{
				{
					Name:       "countdown",
					Step:       time.Second,
					Cancelable: true,
					Triggers:   []Trigger{{Event: EventTimeElapsed, Value: 3, Next: "transmitting"}},
				},
				{
					Name:     "transmitting",
					Dispatch: true,
					Service:  "First Responder",
					ETA:      "4 minutes",
					Triggers: []Trigger{{Event: EventTimeElapsed, Value: 2, Next: "complete"}},
				},
				{Name: "complete"},
			},
		},
	}
}
