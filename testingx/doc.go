// Package testingx provides test helpers shared by workerkit packages.
//
// # Overview
//
// It contains a mock logger that records entries for assertions and helpers
// that lay out a temporary Python project (pyproject.toml, src/workers/...)
// so generator tests can run against a real directory tree.
//
// # Usage
//
//	root := testingx.NewProject(t, map[string]string{
//		"pyproject.toml": "",
//		"src/workers/billing/charge_worker.py": testingx.WorkerSource("ChargeWorker"),
//	})
//	t.Chdir(root)
package testingx
