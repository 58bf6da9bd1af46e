package services

var globalSyncScheduler *SyncScheduler

// SetGlobalSyncScheduler 设置全局同步调度器实例
func SetGlobalSyncScheduler(scheduler *SyncScheduler) {
	globalSyncScheduler = scheduler
}

// GetGlobalSyncScheduler 获取全局同步调度器实例
func GetGlobalSyncScheduler() *SyncScheduler {
	return globalSyncScheduler
}
