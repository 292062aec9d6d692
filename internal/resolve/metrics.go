/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package resolve

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trivial_rewrite",
			Subsystem: "resolve",
			Name:      "requests_total",
			Help:      "Number of addresses resolved.",
		},
	)
	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trivial_rewrite",
			Subsystem: "resolve",
			Name:      "classifications_total",
			Help:      "Number of resolutions by destination class.",
		},
		[]string{"class"},
	)
	lookupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trivial_rewrite",
			Subsystem: "resolve",
			Name:      "lookup_failures_total",
			Help:      "Number of resolutions that ended in FLAG_FAIL due to a transient backend lookup error.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(classificationsTotal)
	prometheus.MustRegister(lookupFailuresTotal)
}

// observe records Prometheus counters for a completed resolution.
func observe(res Result) {
	requestsTotal.Inc()

	if res.Flags.Has(FlagFail) {
		lookupFailuresTotal.Inc()
		return
	}

	switch {
	case res.Flags.Has(ClassLocal):
		classificationsTotal.WithLabelValues("local").Inc()
	case res.Flags.Has(ClassAlias):
		classificationsTotal.WithLabelValues("alias").Inc()
	case res.Flags.Has(ClassVirtual):
		classificationsTotal.WithLabelValues("virtual").Inc()
	case res.Flags.Has(ClassRelay):
		classificationsTotal.WithLabelValues("relay").Inc()
	case res.Flags.Has(ClassDefault):
		classificationsTotal.WithLabelValues("default").Inc()
	}
}
