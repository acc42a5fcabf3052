package dispatcher

import (
	"context"

	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/types"
	"golang.org/x/sync/errgroup"
)

// CredentialSet 按 Group 提供凭证.
type CredentialSet map[registry.Group]provider.Credentials

// ModelOutcome 是多模型调用中单个模型的结果；Error 为该模型的前置条件错误.
type ModelOutcome struct {
	ModelID  string              `json:"model_id"`
	Response *GenerationResponse `json:"response,omitempty"`
	Error    error               `json:"-"`
}

// GenerateMulti 对每个模型并发地执行一次聚合调用，结果顺序与 modelIDs 一致.
// 各调用通过 Ledger 竞争各自 Group 的名额. 只有未认证会使整个调用失败.
func (d *Dispatcher) GenerateMulti(ctx context.Context, modelIDs []string, params GenerateParams, creds CredentialSet) ([]ModelOutcome, error) {
	if len(modelIDs) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "at least one model is required")
	}

	outcomes := make([]ModelOutcome, len(modelIDs))
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range modelIDs {
		g.Go(func() error {
			var c provider.Credentials
			if m, ok := d.reg.ModelByID(id); ok {
				c = creds[m.Group]
			}

			resp, err := d.Generate(gctx, id, params, c)
			outcomes[i] = ModelOutcome{ModelID: id, Response: resp, Error: err}
			if types.IsErrorCode(err, types.ErrAuthRequired) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
