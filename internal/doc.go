// Package internal holds the downgrade engine and the machinery around it.
//
// Engine is the pipeline. It owns one copy of the step catalogue from
// package replacers, ordered newest first, and lowers a parsed class one
// Java release at a time until the class reaches the requested floor:
//
//	engine, err := internal.NewEngine(types.Overrides{
//	    IgnoredRules: []string{"java/util/List;of"},
//	})
//	if err != nil {
//	    // handle error
//	}
//
//	res, err := engine.Downgrade(class, classfile.V1_8, deps.Collector())
//	if err != nil {
//	    // the class is unusable, keep the original bytes
//	}
//	if res.RequiresRevalidation {
//	    // write with frame recomputation
//	}
//
// Steps can be disabled by name and individual call-site rules ignored by
// key. Cache stores rewritten classes by content hash and Watcher re-runs a
// handler when class files change on disk.
//
// This package is intended for use by the downgrade and cmd packages of
// this module only.
package internal
