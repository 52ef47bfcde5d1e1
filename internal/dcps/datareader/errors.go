package datareader

import "errors"

var (
	// ErrUnknownInstance 生命周期事件引用了从未出现过的实例
	ErrUnknownInstance = errors.New("datareader: unknown instance")

	// ErrNoData 没有满足条件的样本
	ErrNoData = errors.New("datareader: no data")

	// ErrMissingSourceTimestamp BY_SOURCE_TIMESTAMP 排序要求变更携带源时间戳
	ErrMissingSourceTimestamp = errors.New("datareader: missing source timestamp")

	// ErrBadParameter 参数非法（例如查询未知实例）
	ErrBadParameter = errors.New("datareader: bad parameter")
)
