/*
Copyright © 2019 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.*/

// Package seed derives a deterministic math/rand source from a
// (scenarioName, trialNumber) pair, so replicate draws are reproducible
// across runs and across platforms without sharing any mutable state
// between trials.
package seed

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// For returns a *rand.Rand seeded deterministically from scenarioName and
// trialNumber. Two calls with the same arguments always produce a source
// that yields the same draw sequence.
func For(scenarioName string, trialNumber int) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%d", scenarioName, trialNumber)
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
