/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDocumentConformsToSchema(t *testing.T) {
	data, err := json.Marshal(sampleDoc(t))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ValidateDocument(data); err != nil {
		t.Fatalf("document does not conform to schema: %v", err)
	}
}

func TestSchemaRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"elements":`,
		"unknown type": `{"elements":{"a":{"elementId":"a","type":"video","props":{},"children":[]}},"pages":[{"pageId":"p","rootElementId":"a"}],"canvas":{"width":1,"height":1}}`,
		"no canvas":    `{"elements":{},"pages":[{"pageId":"p","rootElementId":"a"}]}`,
		"bad bp":       `{"elements":{},"pages":[{"pageId":"p","rootElementId":"a"}],"canvas":{"width":1,"height":1,"breakpoints":[{"name":"x","width":0}]}}`,
	}
	for name, raw := range cases {
		if err := ValidateDocument([]byte(raw)); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
	if len(DocumentSchema()) == 0 {
		t.Fatalf("embedded schema empty")
	}
}
