// Package queue 定义消息主题常量与分组，供发布/订阅使用.
package queue

// 主题命名规范：iv.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：object(对象摄取)、catalog(目录)
// 动作/状态：uploaded(上传通知)、processed(搬迁完成)、process.failed(搬迁失败)

const (
	// 对象摄取领域.
	TopicObjectUploaded      = "iv.object.uploaded"       // 原始桶收到新对象，触发摄取流水线
	TopicObjectProcessed     = "iv.object.processed"      // 对象已搬迁到已处理桶，目录推进到 PROCESSED
	TopicObjectProcessFailed = "iv.object.process.failed" // 摄取流水线终止失败，目录标记 FAILED

	// 目录领域.
	TopicCatalogReconciled = "iv.catalog.reconciled" // 对账任务补齐了一条滞留 RAW 的记录
)

// 主题分组，用于批量订阅或诊断工具.
var (
	// ObjectTopics 对象摄取相关主题集合.
	ObjectTopics = []string{
		TopicObjectUploaded, TopicObjectProcessed, TopicObjectProcessFailed,
	}

	// CatalogTopics 目录相关主题集合.
	CatalogTopics = []string{
		TopicCatalogReconciled,
	}
)
