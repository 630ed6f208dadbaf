package server

// This file is only for test purpose and is only loaded by test framework.

// ListFilter exposes the listing query parser.
var ListFilter = listFilter
