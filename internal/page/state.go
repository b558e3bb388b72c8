package page

// RenderState tracks a highlight's markers in one document.
//
//	unrendered -> rendered -> removed
//	rendered   -> unrendered (controller closed)
type RenderState string

const (
	StateUnrendered RenderState = "unrendered"
	StateRendered   RenderState = "rendered"
	StateRemoved    RenderState = "removed"
)
