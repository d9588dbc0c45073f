package plan

// Step costs. Smaller is preferred.
const (
	CostInventory   = 0
	CostNavigate    = 0
	CostContainer   = 0.1
	CostBundle      = 0.1
	CostDig         = 0.1
	CostHarvest     = 1
	CostCraft       = 1
	CostSurface     = 1 // extra when a work surface has to be placed
	CostCook        = 2
	CostCookFuel    = 4
	CostCooperative = 5
	CostTrade       = 10
	CostOpenRequest = 1000
)

func StepCost(s Step) float64 {
	switch st := s.(type) {
	case FromInventory:
		return CostInventory
	case Navigate:
		return CostNavigate
	case FromContainer:
		return CostContainer
	case FromBundle:
		return CostBundle
	case Dig:
		return CostDig
	case HarvestMob:
		return CostHarvest
	case Craft:
		if st.PlaceSurface {
			return CostCraft + CostSurface
		}
		return CostCraft
	case Cook:
		if st.Source.NeedsFuel {
			return CostCookFuel
		}
		return CostCook
	case CooperativeRequest:
		return CostCooperative
	case Trade:
		return CostTrade
	case OpenRequest:
		return CostOpenRequest
	default:
		return CostOpenRequest
	}
}

// Better reports whether a beats b: a sufficient plan always beats an
// insufficient one, then lower cost wins, then larger result. A nil plan
// never wins.
func Better(a, b *Plan) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	as, bs := a.Sufficient(), b.Sufficient()
	if as != bs {
		return as
	}
	if ac, bc := a.Cost(), b.Cost(); ac != bc {
		return ac < bc
	}
	return a.Result() > b.Result()
}
