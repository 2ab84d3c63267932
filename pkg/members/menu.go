package members

// MenuAction is one entry of a row context menu. Invoke fires the underlying
// intent; labels are already localized.
type MenuAction struct {
	Label string
	do    func()
}

func (a MenuAction) Invoke() {
	if a.do != nil {
		a.do()
	}
}

// RowMenu is the modal context menu for one row. While it is open the
// controller defers speaking reorders; Dismiss replays them. An external
// popup widget owns presentation and must call Dismiss exactly once when it
// closes.
type RowMenu struct {
	identity string
	actions  []MenuAction
	c        *Controller
}

func (m *RowMenu) Identity() string      { return m.identity }
func (m *RowMenu) Actions() []MenuAction { return m.actions }

// Dismiss closes the menu and replays any reorders deferred while it was
// open. Dismissing a menu whose controller has been closed is a no-op.
func (m *RowMenu) Dismiss() {
	c := m.c
	if c == nil {
		return
	}
	c.menuDismissed(m)
}

func (m *RowMenu) detach() {
	m.c = nil
}

// ShowRowMenu builds the context menu for a row. It returns nil for the self
// row, unknown identities, and closed controllers. Showing a menu discards
// any previously open one without replaying its deferred reorders.
func (c *Controller) ShowRowMenu(identity string) *RowMenu {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	row := c.list.FindRow(identity)
	if row == nil || row.self {
		return nil
	}
	if c.menu != nil {
		c.menu.detach()
		c.menu = nil
	}

	m := &RowMenu{identity: identity, c: c}
	admin := c.caps.IsAdmin(identity)
	mute := c.defaultMuteLocked(row)
	if c.caps.CanManageCall() && (!admin || mute) {
		label := c.strings.Unmute()
		if mute {
			label = c.strings.Mute()
		}
		m.actions = append(m.actions, MenuAction{
			Label: label,
			do: func() {
				if cb := c.callback.OnMuteRequest; cb != nil {
					cb(MuteRequest{Identity: identity, Mute: mute})
				}
			},
		})
	}
	if row.state != StateInvited && c.caps.CanRestrict(identity) {
		m.actions = append(m.actions, MenuAction{
			Label: c.strings.Remove(),
			do: func() {
				if cb := c.callback.OnKickRequest; cb != nil {
					cb(identity)
				}
			},
		})
	}
	c.menu = m
	return m
}

func (c *Controller) menuDismissed(m *RowMenu) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.menu != m {
		return
	}
	// Clear the menu before replaying so the replayed reorders are not
	// deferred again.
	c.menu = nil
	deferred := c.menuCheckRowsAfterHidden
	c.menuCheckRowsAfterHidden = make(map[string]struct{})
	for identity := range deferred {
		row := c.list.FindRow(identity)
		if row == nil || !row.speaking {
			// The row vanished or went quiet between deferral and replay.
			continue
		}
		c.checkSpeakingRowPositionLocked(row)
	}
}
