// Provenance subject
// 带来源标记的 BehaviorSubject：每个值都记录是谁写入的，可以按来源过滤
package rxgo

// Provenanced 值及其来源
type Provenanced[T any, P comparable] struct {
	Value      T
	Provenance P
}

// ProvenanceSubject 保存 (值, 来源) 对的 BehaviorSubject
type ProvenanceSubject[T any, P comparable] struct {
	*BehaviorSubject[Provenanced[T, P]]
}

// NewProvenanceSubject 以初始值和初始来源创建
func NewProvenanceSubject[T any, P comparable](initial T, provenance P) *ProvenanceSubject[T, P] {
	return &ProvenanceSubject[T, P]{
		BehaviorSubject: NewBehaviorSubject(Provenanced[T, P]{Value: initial, Provenance: provenance}),
	}
}

// NextWith 以指定来源写入新值
func (s *ProvenanceSubject[T, P]) NextWith(value T, provenance P) {
	s.Next(Provenanced[T, P]{Value: value, Provenance: provenance})
}

// Current 当前值和来源
func (s *ProvenanceSubject[T, P]) Current() (T, P) {
	current := s.Value()
	return current.Value, current.Provenance
}

// All 去掉来源的所有值，订阅时先收到当前值
func (s *ProvenanceSubject[T, P]) All() Observable[T] {
	return Map(func(item Provenanced[T, P]) T { return item.Value })(s)
}

// InitialThenByProvenance 订阅时总是先收到当前值（不论来源），之后只收到来源为 provenance 的值
func (s *ProvenanceSubject[T, P]) InitialThenByProvenance(provenance P) Observable[T] {
	return s.filtered(func(item Provenanced[T, P], index int) bool {
		return index == 0 || item.Provenance == provenance
	})
}

// OnlyByProvenance 只收到来源为 provenance 的值，包括订阅时的当前值
func (s *ProvenanceSubject[T, P]) OnlyByProvenance(provenance P) Observable[T] {
	return s.filtered(func(item Provenanced[T, P], _ int) bool {
		return item.Provenance == provenance
	})
}

func (s *ProvenanceSubject[T, P]) filtered(predicate func(Provenanced[T, P], int) bool) Observable[T] {
	return Pipe2(
		Observable[Provenanced[T, P]](s),
		Filter(predicate),
		Map(func(item Provenanced[T, P]) T { return item.Value }),
	)
}
