package jobs

// 任务名称常量，注册与诊断共用.
const (
	// JobCatalogReconcile 目录对账：补齐搬迁完成但状态滞留 RAW 的记录.
	JobCatalogReconcile = "catalog_reconcile"
)
