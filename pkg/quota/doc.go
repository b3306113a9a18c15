// Package quota enforces count and size ceilings on tracked files.
//
// # Strategies
//
//   - count_based: active record count against MaxCount
//   - size_based: bytes held by active records against MaxSize
//   - hybrid: the larger of the two fractions
//
// # Enforcement
//
// EnforceQuotaLimits only acts when usage reaches the critical threshold.
// It then ranks completed records with CalculateRemovalPriority and marks
// them for deletion until usage would drop back to the warning threshold.
// Marked files are physically removed by the next cleanup pass.
//
// Removal priority is a weighted sum of four sub-scores in [0, 1]:
//
//	0.3*age + 0.4*access + 0.2*size + 0.1*category
//
// Records with a priority level above zero are never candidates. Use
// ReserveSpaceForPriorityImages to protect files within the reserved share
// of MaxSize.
//
// # Usage
//
//	manager := quota.NewManager(lifecycleManager, quota.DefaultConfig(),
//	    quota.WithEventRecorder(tracker),
//	)
//	status := manager.CheckQuotaStatus(ctx)
//	if status.IsCritical {
//	    result := manager.EnforceQuotaLimits(ctx)
//	    log.Printf("marked %d files", result.FilesMarked)
//	}
package quota
