package render

import "context"

type Renderer interface {
	RenderPost(ctx context.Context, page PostPage) ([]byte, error)
	RenderList(ctx context.Context, page ListPage) ([]byte, error)
	RenderNotFound(ctx context.Context, page NotFoundPage) ([]byte, error)
	RenderUnavailable(ctx context.Context, page UnavailablePage) ([]byte, error)
	RenderRedirect(ctx context.Context, page RedirectPage) ([]byte, error)
}
