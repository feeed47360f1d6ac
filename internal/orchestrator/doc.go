// Package orchestrator выполняет flow целиком или частично.
//
// Orchestrator отвечает за:
//   - Валидацию графа и вычисление порядка выполнения
//   - Вырезание диапазона start/stop для частичного run
//   - Засев карты результатов из initialResults
//   - Подстановку {{Name}} и вызов диспетчера для каждого узла
//   - События прогресса и остановку на первой ошибке
//
// Пример:
//
//	orch := orchestrator.New(orchestrator.Config{Dispatcher: dispatcher})
//	results, err := orch.Run(ctx, flow.Nodes, flow.Edges, orchestrator.Options{}, orchestrator.ObserverFuncs{
//	    OnProgress: func(ev domain.ProgressEvent) { ... },
//	})
//
// Ошибка узла возвращается как *NodeError вместе с результатами
// уже завершённых узлов, чтобы run можно было повторить с места ошибки.
package orchestrator
