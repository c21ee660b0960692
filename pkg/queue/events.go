package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishObjectUploaded 发布 iv.object.uploaded 事件。
// 供上传网关或测试工具模拟存储通知，触发摄取流水线。
func PublishObjectUploaded(pub message.Publisher, payload ObjectUploadedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicObjectUploaded, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicObjectUploaded, msg)
}

// ParseObjectUploaded 将 Watermill 消息解析为强类型 Envelope（ObjectUploadedPayload）。
func ParseObjectUploaded(msg *message.Message) (Message[ObjectUploadedPayload], error) {
	return ParseWatermillMessage[ObjectUploadedPayload](msg)
}

// PublishObjectProcessed 发布 iv.object.processed 事件。
// 在对象搬迁完成且目录推进到 PROCESSED 后，通知下游消费方。
func PublishObjectProcessed(pub message.Publisher, payload ObjectProcessedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicObjectProcessed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicObjectProcessed, msg)
}

// ParseObjectProcessed 将 Watermill 消息解析为强类型 Envelope（ObjectProcessedPayload）。
func ParseObjectProcessed(msg *message.Message) (Message[ObjectProcessedPayload], error) {
	return ParseWatermillMessage[ObjectProcessedPayload](msg)
}

// PublishObjectProcessFailed 发布 iv.object.process.failed 事件。
func PublishObjectProcessFailed(pub message.Publisher, payload ObjectProcessFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicObjectProcessFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicObjectProcessFailed, msg)
}

// ParseObjectProcessFailed 将 Watermill 消息解析为强类型 Envelope（ObjectProcessFailedPayload）。
func ParseObjectProcessFailed(msg *message.Message) (Message[ObjectProcessFailedPayload], error) {
	return ParseWatermillMessage[ObjectProcessFailedPayload](msg)
}

// PublishCatalogReconciled 发布 iv.catalog.reconciled 事件。
// 对账任务补齐一条滞留 RAW 的记录后通知下游。
func PublishCatalogReconciled(pub message.Publisher, payload CatalogReconciledPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicCatalogReconciled, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicCatalogReconciled, msg)
}

// ParseCatalogReconciled 将 Watermill 消息解析为强类型 Envelope（CatalogReconciledPayload）。
func ParseCatalogReconciled(msg *message.Message) (Message[CatalogReconciledPayload], error) {
	return ParseWatermillMessage[CatalogReconciledPayload](msg)
}
