/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package core provides the execution core of a cooperative
// control-flow runtime for scripting devices.
//
// A program is a tree of directives.  Leaves are primitives
// (assignments, waits, emissions, tag operations) or constructs
// (if, while, every, at, ...) that expand on demand.  Combinators
// join two subtrees with one of four modes: "&" (both at once), "|"
// (the second once the first is done), ";" (the second on the next
// tick after the first is done) and "," (both, but done as soon as
// the second is).
//
// The primary type is Scheduler, and the primary method is Tick().
// Every tick the Scheduler walks each tree once.  A leaf either
// reports a Status or asks to be replaced by a Plan, which the
// Scheduler materializes in the leaf's place.  Loops never expand
// ahead of time: each iteration is synthesized on the tick it's
// needed.
//
// Directives can hold tags.  Tags are dotted names that support
// stop, freeze and block.  Stopping and blocking are cooperative:
// the Scheduler prunes marked directives on their next visit.
// Freezing skips a subtree while keeping its state; time-based
// leaves don't count frozen time.
//
// Variables live in a Store.  Several assignments to one variable in
// the same tick are combined according to the variable's Blend
// policy, and range and rate constraints are applied before every
// commit.
//
// "at" and "whenever" rules register with the variables and event
// handlers their conditions mention.  Writes and emissions only
// touch the rules; the rules re-evaluate themselves on their next
// visit.  Conditions over events are put in normal form and then
// expanded into the set of concrete event combinations that satisfy
// them.
//
// Nothing here parses source text.  See package program for building
// Plans from documents.
package core
