package shared

// DepreciationRunLockKey is the redis key serializing depreciation batch runs.
const DepreciationRunLockKey = "ledger:depreciation:run:lock"
