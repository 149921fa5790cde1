package accesscontrol

import (
	gc "gopkg.in/check.v1"
)

type enumSuite struct{}

var _ = gc.Suite(&enumSuite{})

func (enumSuite) TestParse(c *gc.C) {
	f, err := ParseAccessControl("remoteview")
	c.Assert(err, gc.IsNil)
	c.Assert(f, gc.Equals, RemoteView)
	a, err := ParseAccess("AFTERCONFIRMATION")
	c.Assert(err, gc.IsNil)
	c.Assert(a, gc.Equals, AfterConfirmation)

	_, err = ParseAccessControl("Clipboard")
	c.Assert(err, gc.ErrorMatches, `feature "Clipboard" not valid`)
	_, err = ParseAccess("")
	c.Assert(err, gc.NotNil)
}

func (enumSuite) TestWireConversion(c *gc.C) {
	for f := FileTransfer; f <= RemoteControl; f++ {
		w := fromAccessControl(f)
		c.Check(w.valid(), gc.Equals, true)
		c.Check(toAccessControl(w), gc.Equals, f)
	}
	for a := Allowed; a <= Denied; a++ {
		w := fromAccess(a)
		c.Check(w.valid(), gc.Equals, true)
		c.Check(toAccess(w), gc.Equals, a)
	}
	c.Check(fromAccessControl(AccessControl(8)).valid(), gc.Equals, false)
	c.Check(fromAccess(Access(-1)).valid(), gc.Equals, false)
	c.Check(AccessControl(8).String(), gc.Equals, "AccessControl(8)")
}
