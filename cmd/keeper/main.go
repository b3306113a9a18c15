// Command keeper manages the lifecycle of ingested files: it records each
// file in SQLite, reclaims storage by retention policy and quota, and
// reports statistics and anomalies.
//
// Usage:
//
//	keeper run                        # metrics, health and scheduled maintenance
//	keeper maintain                   # one maintenance tick
//	keeper cleanup --dry-run          # preview what cleanup would remove
//	keeper quota status               # current usage against the quota
//	keeper records create <path>...   # register ingested files
//	keeper stats anomalies            # detect irregular activity
package main

func main() {
	Execute()
}
