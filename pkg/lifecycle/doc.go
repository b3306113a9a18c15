// Package lifecycle tracks files produced by an ingestion pipeline from
// creation through classification and relocation into categorized storage
// to deletion.
//
// # Records
//
// Each ingested file gets one LifecycleRecord. The record carries the raw
// path, the categorized path once the file is relocated, the content hash
// pair (MD5 and SHA-256), access counters and a priority level. Records are
// never physically deleted; deletion is a transition to
// StatusMarkedForDeletion so the table doubles as an audit trail.
//
// # State Machine
//
//	pending → processing → completed
//	                     ↘ failed
//	(any) → marked_for_deletion
//
// ValidTransition reports whether a move follows this graph. The Manager
// logs transitions that do not, but applies them anyway.
//
// # Manager
//
// Manager is the only component that creates or transitions records. All
// mutators hold a single mutex across their read-modify-write, and every
// persistence call goes through the Storage interface, implemented by
// package storage.
//
// # Basic Usage
//
//	store, _ := storage.NewSQLiteStorage(storage.DefaultSQLiteConfig())
//	mgr := lifecycle.NewManager(store, lifecycle.WithEventRecorder(tracker))
//
//	id := mgr.CreateLifecycleRecord(ctx, "/data/raw/img.jpg", nil)
//	mgr.UpdateProcessingStatus(ctx, id, lifecycle.StatusProcessing, nil)
//	mgr.UpdateProcessingStatus(ctx, id, lifecycle.StatusCompleted, &lifecycle.StatusUpdate{
//	    Category:            "cats",
//	    CategorizedFilePath: "/data/categories/cats/img.jpg",
//	})
package lifecycle
