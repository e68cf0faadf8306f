// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-taxprofile turns per-sample taxonomic classification reports (.breport)
into count and relative abundance matrices per rank, removes sparse taxa,
computes alpha diversity and renders diagnostic charts.

Sample usage:
bio-taxprofile run -ranks S,G -out output path/to/reports
*/

import (
	"github.com/grailbio/taxprofile/cmd/bio-taxprofile/cmd"
)

func main() {
	cmd.Run()
}
