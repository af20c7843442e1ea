package scenario

import (
	"fmt"
	"time"
)

// searchPhases names the rounds of the search scenario. The workload ramps
// through them the way a user types, hits peak results, and settles.
var searchPhases = []string{"Initial", "Peak", "Sustained"}

// Fixed returns the scenario sequence, in profiling order. Scripts are
// synthetic workloads that exercise the page's script engine and DOM; they
// are scripted load generators, not UI automation.
func Fixed() []Scenario {
	return []Scenario{
		{
			Name:   "Initial Load",
			Rounds: 3,
			Pause:  500 * time.Millisecond,
			Script: func(round int) string {
				if round > 0 {
					return ""
				}
				// One warm-up burst, then observe the page settling.
				return "for(let i=0; i<100000; i++) { Math.random(); }"
			},
		},
		{
			Name:   "Weather Search",
			Rounds: len(searchPhases),
			Pause:  400 * time.Millisecond,
			Script: func(round int) string {
				phase := searchPhases[round%len(searchPhases)]
				return fmt.Sprintf(
					"document.body.innerHTML += '<div>Search %s</div>'; for(let i=0; i<50000; i++) { Math.sin(i); }",
					phase)
			},
		},
		{
			Name:   "UI Interactions",
			Rounds: 3,
			Pause:  500 * time.Millisecond,
			Script: func(round int) string {
				return fmt.Sprintf(
					"document.body.style.backgroundColor = 'hsl(%d, 50%%, 95%%)'; for(let j=0; j<30000; j++) { document.createElement('span'); }",
					round*120)
			},
		},
		{
			Name:   "Memory Stress",
			Rounds: 3,
			Pause:  time.Second,
			Script: func(round int) string {
				return fmt.Sprintf(
					"let arr%d = new Array(100000).fill(0).map((_, idx) => Math.random() * idx); arr%d.sort();",
					round, round)
			},
		},
	}
}
