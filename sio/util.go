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

package sio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// JS renders its argument as JSON or as '%#v'.
func JS(x interface{}) string {
	if x == nil {
		return "null"
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

// JShort renders its argument as JS() but only up to 73 characters.
func JShort(x interface{}) string {
	js := JS(x)
	if 70 < len(js) {
		js = js[0:70] + "..."
	}
	return js
}

var shell = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand replaces each '<<CMD>>' with the output of 'bash -c
// CMD'.  Use at your own risk, of course!
func ShellExpand(msg string) (string, error) {
	var (
		acc  strings.Builder
		last = 0
	)
	for _, loc := range shell.FindAllStringSubmatchIndex(msg, -1) {
		acc.WriteString(msg[last:loc[0]])
		sh := msg[loc[2]:loc[3]]
		var out, errs bytes.Buffer
		cmd := exec.Command("bash", "-c", sh)
		cmd.Stdout = &out
		cmd.Stderr = &errs
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("shell error %s on %s: %s", err, sh, bytes.TrimSpace(errs.Bytes()))
		}
		acc.Write(out.Bytes())
		last = loc[1]
	}
	acc.WriteString(msg[last:])
	return acc.String(), nil
}
