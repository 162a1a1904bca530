/* Copyright 2019 Comcast Cable Communications Management, LLC
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

// Package crew tracks the connections attached to a runtime.
package crew

import (
	"sort"
	"sync"
)

// Crew is the set of live connections.
type Crew struct {
	sync.RWMutex

	Id          string                 `json:"id"`
	Connections map[string]*Connection `json:"connections"`
}

func NewCrew(id string) *Crew {
	return &Crew{
		Id:          id,
		Connections: make(map[string]*Connection),
	}
}

// Add registers the connection, replacing any with the same id.
func (c *Crew) Add(conn *Connection) {
	c.Lock()
	c.Connections[conn.Id()] = conn
	c.Unlock()
}

// Remove unregisters and closes the connection.  Returns false if
// there was no such connection.
func (c *Crew) Remove(id string) bool {
	c.Lock()
	conn, have := c.Connections[id]
	delete(c.Connections, id)
	c.Unlock()
	if have {
		conn.Close()
	}
	return have
}

func (c *Crew) Get(id string) *Connection {
	c.RLock()
	defer c.RUnlock()
	return c.Connections[id]
}

// Ids returns the sorted connection ids.
func (c *Crew) Ids() []string {
	c.RLock()
	acc := make([]string, 0, len(c.Connections))
	for id := range c.Connections {
		acc = append(acc, id)
	}
	c.RUnlock()
	sort.Strings(acc)
	return acc
}

// Broadcast sends the output to every connection.
func (c *Crew) Broadcast(o *Output) {
	c.RLock()
	for _, conn := range c.Connections {
		conn.Emit(o)
	}
	c.RUnlock()
}

// Copy gets a read lock and returns a copy of the crew (sharing the
// connections).
func (c *Crew) Copy() *Crew {
	c.RLock()
	cs := make(map[string]*Connection, len(c.Connections))
	for id, conn := range c.Connections {
		cs[id] = conn
	}
	acc := &Crew{
		Id:          c.Id,
		Connections: cs,
	}
	c.RUnlock()
	return acc
}
