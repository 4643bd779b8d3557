package event

// Topic 常量。Outbox 按 topic 投递，消费方按需订阅。
const (
	TopicSequenceCreated = "gas_station.sequence.created"
	TopicSequenceSigned  = "gas_station.sequence.signed"
	TopicSequenceRemoved = "gas_station.sequence.removed"
	TopicGovernorChanged = "gas_station.governor.changed"
)

// SequenceCreated 序列创建事件
type SequenceCreated struct {
	SequenceID   uint64 `json:"sequence_id"`
	ChainID      uint64 `json:"chain_id"`
	CreatedBy    string `json:"created_by"`
	PendingCount int    `json:"pending_count"`
	Deposit      string `json:"deposit"`
}

// StepSigned 单步签名完成 (嵌在 SequenceSigned 里)
type StepSigned struct {
	Idx         int    `json:"idx"`
	IsPaymaster bool   `json:"is_paymaster"`
	SignedRaw   string `json:"signed_raw"`
}

// SequenceSigned 序列全部签完，下游 relayer 拿 raw 交易去外链广播
type SequenceSigned struct {
	SequenceID uint64       `json:"sequence_id"`
	ChainID    uint64       `json:"chain_id"`
	CreatedBy  string       `json:"created_by"`
	Steps      []StepSigned `json:"steps"`
	Fee        string       `json:"fee"`
}

// SequenceRemoved 创建者主动移除了序列
type SequenceRemoved struct {
	SequenceID uint64 `json:"sequence_id"`
	Refund     string `json:"refund"`
}

// GovernorChanged 某个 key path 的签名权发生了变化
type GovernorChanged struct {
	KeyPath  string `json:"key_path"`
	Governor string `json:"governor"` // 空串表示回到 owner 自治
}
