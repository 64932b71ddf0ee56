/*
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


// Package api provides the Ginkgo harness for the eCare practice management
// API.
//
// Suites run against an in-process fake of the identity provider and the
// resource API unless TEST_ENV names a live environment, in which case the
// same suites exercise the real deployment.  Tests that need to provoke
// behaviour only the fake can produce skip themselves when live.
//
// The harness drives the API through pkg/ecare rather than a client
// generated from the OpenAPI document, so a change to the observed API
// shows up as a compensating change there.
package api
