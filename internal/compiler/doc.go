// Package compiler turns CUE request files into fetch.Request values.
//
// A request file declares one top-level `request` struct:
//
//	request: {
//		entity: "Task"
//		where: [
//			{field: "status", eq: "open"},
//			{field: "priority", gte: 3},
//			{field: "owner", in: ["ana", "bo"]},
//		]
//		sort: [{field: "priority", desc: true}, {field: "title"}]
//		limit:  10
//		offset: 0
//	}
//
// Each where entry names one field and exactly one operator (eq, ne, lt, lte,
// gt, gte, in); entries are combined with AND. Floats are rejected. The
// compiler checks shape only; the request's own Validate runs at execution.
package compiler
