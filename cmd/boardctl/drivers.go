package main

// SQL drivers for the sqlite, duckdb, and postgres store backends.
import (
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)
