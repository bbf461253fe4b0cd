package scanner

import "golang.org/x/sync/errgroup"

// batched 按 workers 大小分批并发处理，每批结果写入固定槽位后按原顺序产出。
// 同一时刻最多有一批文件在处理中；消费方 break 后不会启动下一批。
func (s *Scanner) batched(names []string, yield func(Result) bool) bool {
	n := s.workers
	slots := make([]Result, n)

	for start := 0; start < len(names); start += n {
		batch := names[start:min(start+n, len(names))]

		var g errgroup.Group
		g.SetLimit(n)
		for i, name := range batch {
			g.Go(func() error {
				slots[i] = s.build(name)
				return nil
			})
		}
		_ = g.Wait()

		for i := range batch {
			r := slots[i]
			slots[i] = Result{}
			if !yield(r) {
				return false
			}
		}
	}
	return true
}
